// Package threat orchestrates the detectors into SecurityEvents (§4.7).
package threat

import (
	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/detect"
)

// Level is a SecurityEvent's assessed threat level.
type Level string

const (
	LevelBenign     Level = "benign"
	LevelSuspicious Level = "suspicious"
	LevelMalicious  Level = "malicious"
	LevelCritical   Level = "critical"
)

// Source identifies which input produced a SecurityEvent.
type Source string

const (
	SourceRF         Source = "rf"
	SourceNFC        Source = "nfc"
	SourceCorrelated Source = "correlated"
)

// RecommendedAction is the operator-facing action implied by ThreatLevel.
type RecommendedAction string

const (
	ActionMonitor       RecommendedAction = "monitor"
	ActionInvestigate   RecommendedAction = "investigate"
	ActionAlert         RecommendedAction = "alert"
	ActionCriticalAlert RecommendedAction = "critical_alert"
)

// recommendedActionFor maps ThreatLevel to RecommendedAction. Not
// literally tabulated in the source material; chosen as the natural
// one-to-one escalation ladder matching §6's four named actions.
func recommendedActionFor(level Level) RecommendedAction {
	switch level {
	case LevelCritical:
		return ActionCriticalAlert
	case LevelMalicious:
		return ActionAlert
	case LevelSuspicious:
		return ActionInvestigate
	default:
		return ActionMonitor
	}
}

// SupplementalEvidence carries a non-primary verdict's evidence for
// inclusion alongside the primary verdict, per §4.7's tie-break rule.
type SupplementalEvidence struct {
	Kind       detect.Kind
	Confidence float64
	Evidence   detect.Evidence
}

// SecurityEvent is the canonical, fully-typed internal representation of
// an emitted threat assessment (§3 DATA MODEL, §6 wire schema).
type SecurityEvent struct {
	EventID      string
	Timestamp    float64
	Source       Source
	ThreatLevel  Level
	Signal       analyzer.DetectedSignal
	Verdicts     []detect.Verdict
	Supplemental []SupplementalEvidence
	Action       RecommendedAction

	// Populated only for Correlated events.
	RFTriggerID string
	NFCUID      string
	TimeDeltaS  float64

	// Populated only for auxiliary correlation_activated /
	// correlation_timeout events; Signal/Verdicts are unused then.
	AuxKind string
}
