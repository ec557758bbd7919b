package threat

import (
	"github.com/google/uuid"

	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/detect"
)

// History is the subset of the Signal History Buffer the Engine needs:
// detector reads plus the post-verdict insert.
type History interface {
	detect.History
	Insert(signal analyzer.DetectedSignal)
}

// Engine orchestrates the three detectors into a SecurityEvent per
// DetectedSignal (§4.7).
type Engine struct {
	replay     detect.Detector
	jamming    detect.Detector
	bruteForce detect.Detector
	history    History
}

// New creates an Engine consulting the given detectors in
// Replay -> Jamming -> Brute-Force order against history.
func New(replay, jamming, bruteForce detect.Detector, history History) *Engine {
	return &Engine{replay: replay, jamming: jamming, bruteForce: bruteForce, history: history}
}

// Process implements §4.7 steps 1-4. It returns (nil, false) when the
// signal is an Unknown carrier with no verdict of confidence 0.6 or
// more (not emitted).
func (e *Engine) Process(signal analyzer.DetectedSignal) (*SecurityEvent, bool) {
	var verdicts []detect.Verdict

	if v, ok := e.replay.Detect(signal, e.history); ok {
		verdicts = append(verdicts, *v)
	}
	if v, ok := e.jamming.Detect(signal, e.history); ok {
		verdicts = append(verdicts, *v)
	}
	if v, ok := e.bruteForce.Detect(signal, e.history); ok {
		verdicts = append(verdicts, *v)
	}

	e.history.Insert(signal)

	level, ok := threatLevel(signal, verdicts)
	if !ok {
		return nil, false
	}

	primary, supplemental := tieBreak(verdicts)

	event := &SecurityEvent{
		EventID:      uuid.NewString(),
		Timestamp:    signal.Timestamp,
		Source:       SourceRF,
		ThreatLevel:  level,
		Signal:       signal,
		Verdicts:     primary,
		Supplemental: supplemental,
		Action:       recommendedActionFor(level),
	}
	return event, true
}

// threatLevel implements §4.7 step 2's mapping.
func threatLevel(signal analyzer.DetectedSignal, verdicts []detect.Verdict) (Level, bool) {
	hasCritical := false
	hasHighConfidenceReplayOrJamming := false
	hasAnyAboveSuspicious := false

	for _, v := range verdicts {
		if v.Kind == detect.KindBruteForce {
			if tier, _ := v.Evidence["tier"].(string); tier == "critical" {
				hasCritical = true
			}
		}
		if (v.Kind == detect.KindJamming || v.Kind == detect.KindReplay) && v.Confidence >= 0.9 {
			hasHighConfidenceReplayOrJamming = true
		}
		if v.Confidence >= 0.6 {
			hasAnyAboveSuspicious = true
		}
	}

	switch {
	case hasCritical:
		return LevelMalicious, true
	case hasHighConfidenceReplayOrJamming:
		return LevelMalicious, true
	case hasAnyAboveSuspicious:
		return LevelSuspicious, true
	}

	if signal.SignalType == analyzer.SignalTypeUnknown {
		return "", false
	}
	return LevelBenign, true
}

// tieBreak implements §4.7's "report the one with the highest confidence,
// but include the others' evidence as supplemental".
func tieBreak(verdicts []detect.Verdict) ([]detect.Verdict, []SupplementalEvidence) {
	if len(verdicts) == 0 {
		return nil, nil
	}
	bestIdx := 0
	for i, v := range verdicts {
		if v.Confidence > verdicts[bestIdx].Confidence {
			bestIdx = i
		}
	}

	var supplemental []SupplementalEvidence
	for i, v := range verdicts {
		if i == bestIdx {
			continue
		}
		supplemental = append(supplemental, SupplementalEvidence{
			Kind:       v.Kind,
			Confidence: v.Confidence,
			Evidence:   v.Evidence,
		})
	}
	return []detect.Verdict{verdicts[bestIdx]}, supplemental
}
