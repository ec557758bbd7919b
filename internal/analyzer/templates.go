package analyzer

import (
	"math"

	"github.com/cwsl/rfthreat/internal/dsp"
)

// templateScore is the weighted [0,1] fit of a frame's features against
// one automotive template (§4.2 "Template matching" table).
type templateScore struct {
	signalType SignalType
	score      float64
}

// channelFit returns a [0,1] fit of how close absoluteFreqHz is to the
// nearest entry in allowlist, within toleranceHz.
func channelFit(absoluteFreqHz float64, allowlist []float64, toleranceHz float64) float64 {
	if len(allowlist) == 0 || toleranceHz <= 0 {
		return 0
	}
	minDist := math.Inf(1)
	for _, ch := range allowlist {
		d := math.Abs(absoluteFreqHz - ch)
		if d < minDist {
			minDist = d
		}
	}
	fit := 1 - minDist/toleranceHz
	if fit < 0 {
		fit = 0
	}
	if fit > 1 {
		fit = 1
	}
	return fit
}

// triangularFit peaks at 1.0 when v equals the midpoint of [lo,hi] and
// falls linearly to 0 at the edges, used for burst-count fit.
func triangularFit(v float64, lo, hi int) float64 {
	if v < float64(lo) || v > float64(hi) {
		return 0
	}
	mid := float64(lo+hi) / 2
	half := float64(hi-lo) / 2
	if half == 0 {
		return 1
	}
	fit := 1 - math.Abs(v-mid)/half
	if fit < 0 {
		fit = 0
	}
	return fit
}

func qualityFit(snrDb float64) float64 {
	fit := snrDb / 30
	if fit < 0 {
		fit = 0
	}
	if fit > 1 {
		fit = 1
	}
	return fit
}

// scoreKeyFob implements §4.2's KeyFob row.
func scoreKeyFob(f SignalFeatures, absoluteFreqHz float64, allowlist []float64, toleranceHz float64) (float64, bool) {
	if f.Modulation != ModulationFSK && f.Modulation != ModulationGFSK {
		return 0, false
	}
	if f.SNRDb < 10 {
		return 0, false
	}
	if f.BurstCount < 3 || f.BurstCount > 8 {
		return 0, false
	}

	modFit := 1.0
	burstCountFit := triangularFit(float64(f.BurstCount), 3, 8)
	regularity := 1 - dsp.CoefficientOfVariation(f.BurstTiming)
	if regularity < 0 {
		regularity = 0
	}
	if regularity > 1 {
		regularity = 1
	}
	peakFit := channelFit(absoluteFreqHz, allowlist, toleranceHz)
	quality := qualityFit(f.SNRDb)

	score := 0.30*modFit + 0.25*burstCountFit + 0.20*regularity + 0.15*peakFit + 0.10*quality
	return score, true
}

// scoreTPMS implements §4.2's TPMS row. lastSeenGapOK reports whether at
// least tpmsMinGapSeconds have elapsed since the last TPMS signal at the
// same center frequency.
func scoreTPMS(f SignalFeatures, absoluteFreqHz float64, allowlist []float64, toleranceHz float64, lastSeenGapOK bool) (float64, bool) {
	if f.Modulation != ModulationFSK && f.Modulation != ModulationGFSK {
		return 0, false
	}
	if f.SNRDb < 10 {
		return 0, false
	}
	if f.BurstCount < 1 || f.BurstCount > 3 {
		return 0, false
	}
	for _, d := range f.BurstDurations {
		if d < 0.005 || d > 0.015 {
			return 0, false
		}
	}

	modFit := 1.0
	burstCountFit := triangularFit(float64(f.BurstCount), 1, 3)
	gapFit := 0.0
	if lastSeenGapOK {
		gapFit = 1.0
	}
	peakFit := channelFit(absoluteFreqHz, allowlist, toleranceHz)
	quality := qualityFit(f.SNRDb)

	score := 0.30*modFit + 0.25*burstCountFit + 0.20*gapFit + 0.15*peakFit + 0.10*quality
	return score, true
}
