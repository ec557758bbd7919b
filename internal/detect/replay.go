package detect

import (
	"math"

	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/dsp"
)

// ReplayDetector implements §4.4: similarity search across history for a
// near-identical previous transmission.
type ReplayDetector struct {
	cfg config.ReplayConfig
}

// NewReplayDetector creates a ReplayDetector.
func NewReplayDetector(cfg config.ReplayConfig) *ReplayDetector {
	return &ReplayDetector{cfg: cfg}
}

const replayCenterFreqToleranceHz = 1000

// Detect implements the Detector interface.
func (d *ReplayDetector) Detect(current analyzer.DetectedSignal, h History) (*Verdict, bool) {
	candidates := h.ByCenterFreq(current.CenterFreq, replayCenterFreqToleranceHz, d.cfg.WindowSeconds)

	minDelta := d.cfg.MinDeltaSeconds
	if minDelta <= 0 {
		minDelta = 1
	}

	var best *Verdict
	var bestTs float64

	for _, cand := range candidates {
		if cand.ID == current.ID {
			continue
		}
		if cand.SignalType != current.SignalType {
			continue
		}
		delta := current.Timestamp - cand.Timestamp
		if delta < minDelta || delta > d.cfg.WindowSeconds {
			continue
		}

		sim, breakdown := similarity(current.Features, cand.Features)
		if sim < d.cfg.SimilarityThreshold {
			continue
		}
		if best == nil || cand.Timestamp > bestTs {
			bestTs = cand.Timestamp
			best = &Verdict{
				Kind:       KindReplay,
				Confidence: sim,
				Evidence: Evidence{
					"original_ts":  cand.Timestamp,
					"original_id":  cand.ID,
					"replay_ts":    current.Timestamp,
					"time_delta_s": delta,
					"breakdown":    breakdown,
				},
			}
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// similarity implements §4.4's weighted similarity formula.
func similarity(a, b analyzer.SignalFeatures) (float64, map[string]float64) {
	corr := dsp.PearsonCorrelation(a.PowerSpectrumDB, b.PowerSpectrumDB)
	burstSim := dsp.BurstSimilarity(a.BurstTiming, b.BurstTiming, 5)
	freqDevSim := math.Max(0, 1-math.Abs(a.FreqDeviationHz-b.FreqDeviationHz)/5000)
	bwSim := bwSimilarity(a.BandwidthHz, b.BandwidthHz)

	sim := 0.40*corr + 0.30*burstSim + 0.20*freqDevSim + 0.10*bwSim

	return sim, map[string]float64{
		"corr":         corr,
		"burst_sim":    burstSim,
		"freq_dev_sim": freqDevSim,
		"bw_sim":       bwSim,
	}
}

func bwSimilarity(a, b float64) float64 {
	maxBw := math.Max(a, b)
	if maxBw == 0 {
		return 1
	}
	sim := 1 - math.Abs(a-b)/maxBw
	if sim < 0 {
		sim = 0
	}
	return sim
}
