package detect

import (
	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/dsp"
)

// BruteForceDetector implements §4.6: rate/pattern analysis over sliding
// windows of the same signal_type and center-frequency band.
type BruteForceDetector struct {
	cfg config.BruteForceConfig
}

// NewBruteForceDetector creates a BruteForceDetector.
func NewBruteForceDetector(cfg config.BruteForceConfig) *BruteForceDetector {
	return &BruteForceDetector{cfg: cfg}
}

const bruteForceCenterFreqToleranceHz = 5000

type tier struct {
	name      string
	window    float64
	threshold int
}

// Detect implements the Detector interface. The verdict takes the
// highest-tier trigger; confidence is monotonic in (count-threshold)/
// threshold, clamped to [0.6, 1.0].
func (d *BruteForceDetector) Detect(current analyzer.DetectedSignal, h History) (*Verdict, bool) {
	// Unknown (low-confidence, no-template-match) signals are excluded
	// from brute-force counting per spec.md's Open Question resolution
	// (§9): only confirmed KeyFob/TPMS signals count.
	if current.SignalType == analyzer.SignalTypeUnknown {
		return nil, false
	}

	sameFreq := h.ByCenterFreq(current.CenterFreq, bruteForceCenterFreqToleranceHz, d.cfg.LongWindowSecs)

	var sameType []analyzer.DetectedSignal
	for _, s := range sameFreq {
		if s.SignalType == current.SignalType {
			sameType = append(sameType, s)
		}
	}
	sameType = append(sameType, current)

	tiers := []tier{
		{"critical", d.cfg.BurstWindowSecs, d.cfg.BurstThreshold},
		{"high", d.cfg.LongWindowSecs, d.cfg.LongThreshold},
		{"moderate", d.cfg.MediumWindowSecs, d.cfg.MediumThreshold},
		{"suspicious", d.cfg.ShortWindowSecs, d.cfg.ShortThreshold},
	}

	counts := make(map[string]int, len(tiers))
	var winningTier *tier
	var winningCount int

	for i := range tiers {
		t := &tiers[i]
		count := countWithin(sameType, current.Timestamp, t.window)
		counts[t.name] = count

		if t.name == "critical" {
			if count < t.threshold || !burstIsRegular(sameType, current.Timestamp, t.window, d.cfg.BurstMaxCV) {
				continue
			}
		} else if count < t.threshold {
			continue
		}

		if winningTier == nil {
			winningTier = t
			winningCount = count
			break
		}
	}

	if winningTier == nil {
		return nil, false
	}

	confidence := confidenceFor(winningCount, winningTier.threshold)

	return &Verdict{
		Kind:       KindBruteForce,
		Confidence: confidence,
		Evidence: Evidence{
			"tier":                winningTier.name,
			"counts_per_window":   counts,
			"inter_arrival_stats": interArrivalStats(sameType, current.Timestamp, winningTier.window),
		},
	}, true
}

func countWithin(signals []analyzer.DetectedSignal, now, window float64) int {
	n := 0
	for _, s := range signals {
		if now-s.Timestamp <= window {
			n++
		}
	}
	return n
}

func burstIsRegular(signals []analyzer.DetectedSignal, now, window, maxCV float64) bool {
	var within []analyzer.DetectedSignal
	for _, s := range signals {
		if now-s.Timestamp <= window {
			within = append(within, s)
		}
	}
	if len(within) < 2 {
		return false
	}
	intervals := make([]float64, len(within)-1)
	for i := 1; i < len(within); i++ {
		intervals[i-1] = within[i].Timestamp - within[i-1].Timestamp
	}
	if maxCV <= 0 {
		maxCV = 0.15
	}
	return dsp.CoefficientOfVariation(intervals) <= maxCV
}

func interArrivalStats(signals []analyzer.DetectedSignal, now, window float64) map[string]float64 {
	var within []analyzer.DetectedSignal
	for _, s := range signals {
		if now-s.Timestamp <= window {
			within = append(within, s)
		}
	}
	if len(within) < 2 {
		return map[string]float64{"mean_s": 0, "std_s": 0, "cv": 0}
	}
	intervals := make([]float64, len(within)-1)
	for i := 1; i < len(within); i++ {
		intervals[i-1] = within[i].Timestamp - within[i-1].Timestamp
	}
	return map[string]float64{
		"mean_s": dsp.Mean(intervals),
		"std_s":  dsp.StdDev(intervals),
		"cv":     dsp.CoefficientOfVariation(intervals),
	}
}

// confidenceFor implements "a monotonic function of (count-threshold)/
// threshold, clamped to [0.6, 1.0]".
func confidenceFor(count, threshold int) float64 {
	if threshold <= 0 {
		return 0.6
	}
	ratio := float64(count-threshold) / float64(threshold)
	c := 0.6 + ratio
	if c < 0.6 {
		c = 0.6
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
