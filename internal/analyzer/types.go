// Package analyzer extracts per-frame signal features and matches them
// against automotive protocol templates (§4.2).
package analyzer

// Modulation is the classified modulation scheme of a frame.
type Modulation string

const (
	ModulationFSK      Modulation = "fsk"
	ModulationGFSK     Modulation = "gfsk"
	ModulationASK      Modulation = "ask"
	ModulationOOK      Modulation = "ook"
	ModulationNoise    Modulation = "noise"
	ModulationWideband Modulation = "wideband"
	ModulationUnknown  Modulation = "unknown"
)

// SignalType classifies a DetectedSignal against known automotive
// protocol templates.
type SignalType string

const (
	SignalTypeKeyFob  SignalType = "key_fob"
	SignalTypeTPMS    SignalType = "tpms"
	SignalTypeUnknown SignalType = "unknown"
)

// SignalFeatures holds the per-frame extracted features (§3 DATA MODEL).
type SignalFeatures struct {
	PowerSpectrumDB []float64
	PeakFreqOffsetHz float64
	BandwidthHz      float64
	SNRDb            float64
	RSSIDb           float64
	NoiseFloorDb     float64

	// BurstTiming holds the ordered inter-burst gap durations in
	// seconds (n-1 entries for n detected bursts); this is the spec's
	// "burst_timing" field, read as the temporal fingerprint used by
	// replay/burst-regularity checks.
	BurstTiming []float64

	// BurstDurations holds each detected burst's own duration in
	// seconds, ordered. Not named explicitly in the data model table
	// but required to check TPMS's "each burst 5-15ms" precondition;
	// added as a supplemental field per the expansion rules.
	BurstDurations []float64
	BurstCount     int

	FreqDeviationHz float64
	FreqStdHz       float64
	Modulation      Modulation
}

// DetectedSignal is produced by the Analyzer when features meet an
// automotive template with sufficient confidence, or as a low-confidence
// Unknown carrier for downstream jamming analysis.
type DetectedSignal struct {
	ID         string
	Timestamp  float64
	CenterFreq uint64
	Features   SignalFeatures
	SignalType SignalType
	Confidence float64
}
