package analyzer

import "math"

// burstWindow is a single contiguous above-threshold run, in samples.
type burstWindow struct {
	startSample int
	endSample   int
}

// extractBursts finds contiguous runs of samples whose envelope power
// (in dB) exceeds noiseFloorDb+10dB and lasts at least minDurationSec
// (§4.2 step 6). Returns each burst's duration and the gaps between
// consecutive bursts, both in seconds.
func extractBursts(samples []complex128, sampleRate uint64, noiseFloorDb float64) (durations, gaps []float64, count int) {
	if len(samples) == 0 || sampleRate == 0 {
		return nil, nil, 0
	}

	threshold := noiseFloorDb + 10
	minSamples := int(float64(sampleRate) * 0.001) // >= 1 ms
	if minSamples < 1 {
		minSamples = 1
	}

	var windows []burstWindow
	inBurst := false
	start := 0
	for i, s := range samples {
		mag2 := real(s)*real(s) + imag(s)*imag(s)
		db := 10 * math.Log10(mag2+1e-12)
		above := db > threshold
		if above && !inBurst {
			inBurst = true
			start = i
		} else if !above && inBurst {
			inBurst = false
			if i-start >= minSamples {
				windows = append(windows, burstWindow{startSample: start, endSample: i})
			}
		}
	}
	if inBurst && len(samples)-start >= minSamples {
		windows = append(windows, burstWindow{startSample: start, endSample: len(samples)})
	}

	durations = make([]float64, len(windows))
	for i, w := range windows {
		durations[i] = float64(w.endSample-w.startSample) / float64(sampleRate)
	}

	if len(windows) > 1 {
		gaps = make([]float64, len(windows)-1)
		for i := 1; i < len(windows); i++ {
			gaps[i-1] = float64(windows[i].startSample-windows[i-1].endSample) / float64(sampleRate)
		}
	}

	return durations, gaps, len(windows)
}
