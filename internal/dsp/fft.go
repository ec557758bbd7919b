// Package dsp provides the numerical building blocks shared by the
// Signal Analyzer and the temporal/statistical detectors: windowed FFTs,
// spectral statistics, instantaneous frequency via the analytic signal,
// and the similarity measures used by replay detection.
package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const epsilon = 1e-12

// HannWindow returns an n-point Hann window.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// NextPowerOfTwo returns the smallest power of two >= n, capped at max.
func NextPowerOfTwo(n, max int) int {
	p := 1
	for p < n && p < max {
		p <<= 1
	}
	if p > max {
		p = max
	}
	return p
}

// LargestPowerOfTwoLE returns the largest power of two <= n, capped at
// max. Used for FFT sizing (§4.2 step 1: "length = next power of two <=
// N (cap 65,536)").
func LargestPowerOfTwoLE(n, max int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	if p > max {
		p = max
	}
	return p
}

// windowedComplexInput truncates or zero-pads samples to exactly
// len(window) complex values and applies the window to both I and Q,
// mirroring audio_extensions/morse's windowed-buffer-then-FFT shape
// generalized from real to complex baseband samples.
func windowedComplexInput(samples []complex128, window []float64) []complex128 {
	n := len(window)
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		if i < len(samples) {
			out[i] = complex(real(samples[i])*window[i], imag(samples[i])*window[i])
		}
	}
	return out
}

// PowerSpectrumDB computes a windowed complex FFT of samples (truncated
// or zero-padded to fftSize, which must be a power of two) and returns
// the log-domain power spectrum in FFT bin order: 10*log10(|X|^2 + eps),
// per §4.2 step 1. Bin i's center frequency offset from the frame's
// center_freq is given by BinFrequencyHz(i, fftSize, sampleRate).
func PowerSpectrumDB(samples []complex128, fftSize int) []float64 {
	window := HannWindow(fftSize)
	windowed := windowedComplexInput(samples, window)

	fft := fourier.NewCmplxFFT(fftSize)
	coeffs := fft.Coefficients(nil, windowed)

	spectrum := make([]float64, len(coeffs))
	for i, c := range coeffs {
		re, im := real(c), imag(c)
		mag2 := re*re + im*im
		spectrum[i] = 10 * math.Log10(mag2+epsilon)
	}
	return spectrum
}

// BinFrequencyHz maps FFT bin index i (0..n-1) of an n-point complex FFT
// sampled at sampleRate to a signed frequency offset in Hz, with bins
// n/2..n-1 representing negative frequencies.
func BinFrequencyHz(i, n int, sampleRate uint64) float64 {
	if i >= n/2 {
		i -= n
	}
	return float64(i) * float64(sampleRate) / float64(n)
}

// Percentile returns the p-th percentile (0-100) of data using linear
// interpolation between closest ranks. data is not modified.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// MedianOfLowerFraction returns the median of the lower frac fraction
// (0,1] of data after sorting, used for noise-floor estimation (§4.2
// step 2: "median of the lower 40% of spectrum values").
func MedianOfLowerFraction(data []float64, frac float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	n := int(float64(len(sorted)) * frac)
	if n < 1 {
		n = 1
	}
	lower := sorted[:n]
	return Percentile(lower, 50)
}

// MeanOfTopFraction returns the mean of the top frac fraction (0,1] of
// data after sorting, used for RSSI estimation.
func MeanOfTopFraction(data []float64, frac float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	n := int(float64(len(sorted)) * frac)
	if n < 1 {
		n = 1
	}
	top := sorted[len(sorted)-n:]
	sum := 0.0
	for _, v := range top {
		sum += v
	}
	return sum / float64(len(top))
}

// SpectralFlatness is the ratio of the geometric mean to the arithmetic
// mean of a linear-power spectrum; values near 1 indicate broadband
// noise (§4.5 check 2, GLOSSARY).
func SpectralFlatness(linearPower []float64) float64 {
	if len(linearPower) == 0 {
		return 0
	}
	logSum := 0.0
	arithSum := 0.0
	for _, v := range linearPower {
		if v <= 0 {
			v = epsilon
		}
		logSum += math.Log(v)
		arithSum += v
	}
	n := float64(len(linearPower))
	geoMean := math.Exp(logSum / n)
	arithMean := arithSum / n
	if arithMean <= 0 {
		return 0
	}
	return geoMean / arithMean
}

// DBToLinear converts a log-domain power spectrum back to linear power,
// the form SpectralFlatness expects.
func DBToLinear(db []float64) []float64 {
	out := make([]float64, len(db))
	for i, v := range db {
		out[i] = math.Pow(10, v/10)
	}
	return out
}

// normalizeLength resamples b (by nearest-index decimation/repetition)
// to len(a), so spectra of differing length can be compared.
func normalizeLength(a, b []float64) (x, y []float64) {
	n := len(a)
	if n == 0 || len(b) == 0 {
		return nil, nil
	}
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		srcIdx := i * len(b) / n
		if srcIdx >= len(b) {
			srcIdx = len(b) - 1
		}
		y[i] = b[srcIdx]
	}
	return a, y
}

// PearsonCorrelation returns the Pearson correlation coefficient between
// a and b after length-normalizing b to len(a) (§4.4: "Pearson
// correlation of log-power spectra after length normalization").
func PearsonCorrelation(a, b []float64) float64 {
	x, y := normalizeLength(a, b)
	if len(x) < 2 {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}
