package dsp

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// InstantaneousFrequency computes the per-sample instantaneous frequency
// of a complex baseband signal via unwrapped phase differencing (§4.2
// step 4). Direct-conversion IQ samples are already the analytic signal
// of the underlying real passband waveform (I/Q mixing implements the
// Hilbert-transform pair directly), so no separate Hilbert-transform
// pass is needed: f_inst[n] = (phase_unwrap[n+1] - phase_unwrap[n]) *
// sampleRate / (2*pi).
func InstantaneousFrequency(samples []complex128, sampleRate uint64) []float64 {
	if len(samples) < 2 {
		return nil
	}

	phase := make([]float64, len(samples))
	for i, s := range samples {
		phase[i] = math.Atan2(imag(s), real(s))
	}
	unwrapped := unwrapPhase(phase)

	freq := make([]float64, len(samples)-1)
	scale := float64(sampleRate) / (2 * math.Pi)
	for i := 0; i < len(freq); i++ {
		freq[i] = (unwrapped[i+1] - unwrapped[i]) * scale
	}
	return freq
}

// unwrapPhase removes 2*pi discontinuities from a phase sequence.
func unwrapPhase(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	for i := 1; i < len(phase); i++ {
		delta := phase[i] - phase[i-1]
		for delta > math.Pi {
			delta -= 2 * math.Pi
		}
		for delta < -math.Pi {
			delta += 2 * math.Pi
		}
		out[i] = out[i-1] + delta
	}
	return out
}

// FreqStats returns the population standard deviation and range (max-min)
// of a frequency sequence, used for modulation classification (§4.2 step
// 5).
func FreqStats(freq []float64) (std, rng float64) {
	if len(freq) == 0 {
		return 0, 0
	}
	min, max := freq[0], freq[0]
	for _, f := range freq {
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	return StdDev(freq), max - min
}

// Variance returns the population variance of data.
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(data, nil)
	return variance
}

// Mean returns the arithmetic mean of data.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev returns the population standard deviation of data. gonum/stat
// exposes population mean+variance directly but not a standalone
// population stddev, so this takes the square root of Variance rather
// than hand-rolling the underlying sum-of-squares pass itself.
func StdDev(data []float64) float64 {
	return math.Sqrt(Variance(data))
}

// CoefficientOfVariation returns the ratio of standard deviation to mean
// (sigma/mu), used for burst-regularity and inter-arrival checks.
func CoefficientOfVariation(data []float64) float64 {
	mean := Mean(data)
	if mean == 0 {
		return 0
	}
	return StdDev(data) / mean
}
