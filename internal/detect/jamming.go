package detect

import (
	"math"

	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/dsp"
)

// JammingDetector implements §4.5: noise-floor baseline and pattern
// analysis on the current frame plus recent history at the same center
// frequency.
type JammingDetector struct {
	cfg config.JammingConfig
}

// NewJammingDetector creates a JammingDetector.
func NewJammingDetector(cfg config.JammingConfig) *JammingDetector {
	return &JammingDetector{cfg: cfg}
}

const jammingCenterFreqToleranceHz = 5000

// Detect implements the Detector interface.
func (d *JammingDetector) Detect(current analyzer.DetectedSignal, h History) (*Verdict, bool) {
	window := d.cfg.HistoryWindowSecs
	if window <= 0 {
		window = 45
	}
	recent := h.ByCenterFreq(current.CenterFreq, jammingCenterFreqToleranceHz, window)

	noiseElevationDb := d.cfg.NoiseElevationDb
	if noiseElevationDb <= 0 {
		noiseElevationDb = 10
	}
	flatnessThreshold := d.cfg.FlatnessThreshold
	if flatnessThreshold <= 0 {
		flatnessThreshold = 0.5
	}

	baseline := medianNoiseFloor(recent)
	elevation := current.Features.NoiseFloorDb - baseline
	elevated := elevation >= noiseElevationDb

	flatness := dsp.SpectralFlatness(linearPower(current.Features.PowerSpectrumDB))
	broadband := flatness > flatnessThreshold

	patternKind, patternConfidence := identifyPattern(current, recent, noiseElevationDb)

	confidence := 0.0
	if elevated {
		confidence += 0.3
	}
	if broadband {
		confidence += 0.2
	}
	confidence += 0.5 * patternConfidence

	minConfidence := d.cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	if confidence < minConfidence {
		return nil, false
	}

	return &Verdict{
		Kind:       KindJamming,
		Confidence: confidence,
		Evidence: Evidence{
			"elevation_db":       elevation,
			"flatness":           flatness,
			"pattern":            patternKind,
			"affected_band_hz":   current.CenterFreq,
			"snr_degradation_db": baseline - current.Features.NoiseFloorDb,
		},
	}, true
}

func medianNoiseFloor(recent []analyzer.DetectedSignal) float64 {
	if len(recent) == 0 {
		return 0
	}
	vals := make([]float64, len(recent))
	for i, s := range recent {
		vals[i] = s.Features.NoiseFloorDb
	}
	return dsp.Percentile(vals, 0.5)
}

func linearPower(db []float64) []float64 {
	return dsp.DBToLinear(db)
}

// identifyPattern implements §4.5's "exactly one of" pattern table,
// returning the best-matching kind and a [0,1] confidence for it.
func identifyPattern(current analyzer.DetectedSignal, recent []analyzer.DetectedSignal, elevationThreshold float64) (string, float64) {
	if c, ok := continuousPattern(current, recent, elevationThreshold); ok {
		return "continuous", c
	}
	if c, ok := pulsePattern(recent); ok {
		return "pulse", c
	}
	if c, ok := sweepPattern(recent); ok {
		return "sweep", c
	}
	if c, ok := spotPattern(current); ok {
		return "spot", c
	}
	return "none", 0
}

func continuousPattern(current analyzer.DetectedSignal, recent []analyzer.DetectedSignal, elevationThreshold float64) (float64, bool) {
	window := windowWithin(recent, current.Timestamp, 2)
	if len(window) < 2 {
		return 0, false
	}
	powers := make([]float64, len(window))
	for i, s := range window {
		powers[i] = s.Features.RSSIDb
	}
	v := dsp.Variance(powers)
	elevation := current.Features.NoiseFloorDb - medianNoiseFloor(recent)
	if v < 25 && elevation >= elevationThreshold {
		return 1, true
	}
	return 0, false
}

func windowWithin(signals []analyzer.DetectedSignal, now, seconds float64) []analyzer.DetectedSignal {
	var out []analyzer.DetectedSignal
	for _, s := range signals {
		if now-s.Timestamp <= seconds {
			out = append(out, s)
		}
	}
	return out
}

func pulsePattern(recent []analyzer.DetectedSignal) (float64, bool) {
	if len(recent) < 4 {
		return 0, false
	}
	intervals := make([]float64, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		intervals[i-1] = recent[i].Timestamp - recent[i-1].Timestamp
	}
	cv := dsp.CoefficientOfVariation(intervals)
	if cv > 0.2 {
		return 0, false
	}

	heights := make([]float64, len(recent))
	for i, s := range recent {
		heights[i] = s.Features.RSSIDb
	}
	maxH, minH := heights[0], heights[0]
	for _, h := range heights {
		if h > maxH {
			maxH = h
		}
		if h < minH {
			minH = h
		}
	}
	if maxH-minH > 3 {
		return 0, false
	}
	return 1, true
}

func sweepPattern(recent []analyzer.DetectedSignal) (float64, bool) {
	if len(recent) < 8 {
		return 0, false
	}
	up, down := 0, 0
	meanPower := 0.0
	for i := 1; i < len(recent); i++ {
		d := recent[i].Features.PeakFreqOffsetHz - recent[i-1].Features.PeakFreqOffsetHz
		if d > 0 {
			up++
		} else if d < 0 {
			down++
		}
	}
	for _, s := range recent {
		meanPower += s.Features.RSSIDb
	}
	meanPower /= float64(len(recent))

	total := up + down
	if total == 0 {
		return 0, false
	}
	consistency := math.Max(float64(up), float64(down)) / float64(total)
	if consistency >= 0.6 && meanPower > -40 {
		return consistency, true
	}
	return 0, false
}

// spotPattern implements §4.5's Spot check. The spec's "peak-to-mean
// spectral ratio" is computed on linear power, since a ratio of
// dB-domain values has no physical meaning; "max spectrum bin > 2" is
// read literally against the dB-domain spectrum as supplied.
func spotPattern(current analyzer.DetectedSignal) (float64, bool) {
	spectrum := current.Features.PowerSpectrumDB
	if len(spectrum) == 0 {
		return 0, false
	}
	linear := linearPower(spectrum)

	peakLinear, meanLinear := linear[0], 0.0
	peakDb := spectrum[0]
	for i, v := range linear {
		if v > peakLinear {
			peakLinear = v
		}
		meanLinear += v
		if spectrum[i] > peakDb {
			peakDb = spectrum[i]
		}
	}
	meanLinear /= float64(len(linear))

	if meanLinear == 0 {
		return 0, false
	}
	ratio := peakLinear / meanLinear
	if ratio > 10 && peakDb > 2 {
		return 1, true
	}
	return 0, false
}
