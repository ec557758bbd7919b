package threat

import (
	"encoding/json"

	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/detect"
)

// wireSignal is the §6 "signal" sub-object.
type wireSignal struct {
	Type         string  `json:"type"`
	CenterFreqHz uint64  `json:"center_freq_hz"`
	RSSIDb       float64 `json:"rssi_db"`
	SNRDb        float64 `json:"snr_db"`
	Modulation   string  `json:"modulation"`
	BandwidthHz  float64 `json:"bandwidth_hz"`
	BurstCount   int     `json:"burst_count"`
	Confidence   float64 `json:"confidence"`
}

// wireVerdict is one entry of the §6 "verdicts" array.
type wireVerdict struct {
	Kind       string         `json:"kind"`
	Confidence float64        `json:"confidence"`
	Evidence   map[string]any `json:"evidence"`
}

// wireEvent is the canonical §6 NDJSON envelope.
type wireEvent struct {
	EventID           string        `json:"event_id"`
	Timestamp         float64       `json:"ts"`
	Source            string        `json:"source"`
	ThreatLevel       string        `json:"threat_level"`
	Signal            *wireSignal   `json:"signal,omitempty"`
	Verdicts          []wireVerdict `json:"verdicts,omitempty"`
	RecommendedAction string        `json:"recommended_action,omitempty"`

	RFTriggerID string  `json:"rf_trigger_id,omitempty"`
	NFCUID      string  `json:"nfc_uid,omitempty"`
	TimeDeltaS  float64 `json:"time_delta_s,omitempty"`

	Type string `json:"type,omitempty"`
}

// MarshalJSON implements the canonical wire format, including the
// auxiliary correlation_activated/correlation_timeout shapes (§6) that
// share the envelope but use "type" instead of "threat_level" semantics.
func (e SecurityEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		EventID:           e.EventID,
		Timestamp:         e.Timestamp,
		Source:            string(e.Source),
		ThreatLevel:       string(e.ThreatLevel),
		RecommendedAction: string(e.Action),
		RFTriggerID:       e.RFTriggerID,
		NFCUID:            e.NFCUID,
		TimeDeltaS:        e.TimeDeltaS,
		Type:              e.AuxKind,
	}

	if e.AuxKind == "" {
		w.Signal = &wireSignal{
			Type:         string(e.Signal.SignalType),
			CenterFreqHz: e.Signal.CenterFreq,
			RSSIDb:       e.Signal.Features.RSSIDb,
			SNRDb:        e.Signal.Features.SNRDb,
			Modulation:   string(e.Signal.Features.Modulation),
			BandwidthHz:  e.Signal.Features.BandwidthHz,
			BurstCount:   e.Signal.Features.BurstCount,
			Confidence:   e.Signal.Confidence,
		}
		for _, v := range e.Verdicts {
			w.Verdicts = append(w.Verdicts, wireVerdict{
				Kind:       string(v.Kind),
				Confidence: v.Confidence,
				Evidence:   map[string]any(v.Evidence),
			})
		}
	}

	return json.Marshal(w)
}

// UnmarshalJSON parses the canonical wire format back into a
// SecurityEvent, used for the round-trip tests required by §8.
func (e *SecurityEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = SecurityEvent{
		EventID:     w.EventID,
		Timestamp:   w.Timestamp,
		Source:      Source(w.Source),
		ThreatLevel: Level(w.ThreatLevel),
		Action:      RecommendedAction(w.RecommendedAction),
		RFTriggerID: w.RFTriggerID,
		NFCUID:      w.NFCUID,
		TimeDeltaS:  w.TimeDeltaS,
		AuxKind:     w.Type,
	}

	if w.Signal != nil {
		e.Signal.SignalType = signalTypeFromWire(w.Signal.Type)
		e.Signal.CenterFreq = w.Signal.CenterFreqHz
		e.Signal.Confidence = w.Signal.Confidence
		e.Signal.Features.RSSIDb = w.Signal.RSSIDb
		e.Signal.Features.SNRDb = w.Signal.SNRDb
		e.Signal.Features.Modulation = modulationFromWire(w.Signal.Modulation)
		e.Signal.Features.BandwidthHz = w.Signal.BandwidthHz
		e.Signal.Features.BurstCount = w.Signal.BurstCount
	}

	for _, v := range w.Verdicts {
		e.Verdicts = append(e.Verdicts, verdictFromWire(v))
	}

	return nil
}

func signalTypeFromWire(s string) analyzer.SignalType {
	switch s {
	case string(analyzer.SignalTypeKeyFob):
		return analyzer.SignalTypeKeyFob
	case string(analyzer.SignalTypeTPMS):
		return analyzer.SignalTypeTPMS
	default:
		return analyzer.SignalTypeUnknown
	}
}

func modulationFromWire(s string) analyzer.Modulation {
	return analyzer.Modulation(s)
}

func verdictFromWire(w wireVerdict) detect.Verdict {
	return detect.Verdict{
		Kind:       detect.Kind(w.Kind),
		Confidence: w.Confidence,
		Evidence:   detect.Evidence(w.Evidence),
	}
}
