// Package detect implements the three signal detectors — Replay,
// Jamming, Brute-Force — as a small common interface (§4.4-§4.6, §9
// "dynamic dispatch" design note: a tagged variant rather than
// inheritance).
package detect

import "github.com/cwsl/rfthreat/internal/analyzer"

// Kind identifies which detector produced a Verdict.
type Kind string

const (
	KindReplay     Kind = "replay"
	KindJamming    Kind = "jamming"
	KindBruteForce Kind = "brute_force"
)

// Evidence is a detector-specific, named set of supporting values
// attached to a Verdict for inclusion in the emitted SecurityEvent.
type Evidence map[string]any

// Verdict is a single detector's finding for a DetectedSignal.
type Verdict struct {
	Kind       Kind
	Confidence float64
	Evidence   Evidence
}

// History is the read-only view a Detector needs of the Signal History
// Buffer; satisfied by *history.History without importing it here,
// keeping detectors decoupled from the concrete store per §9's
// "detectors reference history read-only" note.
type History interface {
	Recent(windowSeconds float64) []analyzer.DetectedSignal
	ByType(signalType analyzer.SignalType, windowSeconds float64) []analyzer.DetectedSignal
	ByCenterFreq(centerFreq uint64, toleranceHz float64, windowSeconds float64) []analyzer.DetectedSignal
}

// Detector analyzes a signal against historical context and optionally
// produces a Verdict.
type Detector interface {
	Detect(current analyzer.DetectedSignal, h History) (*Verdict, bool)
}
