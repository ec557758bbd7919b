package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHannWindowEndpointsNearZero(t *testing.T) {
	w := HannWindow(8)
	assert.InDelta(t, 0, w[0], 1e-9)
	assert.InDelta(t, 2, w[4]+w[3], 0.3) // each interior sample rises toward 1
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, 256, NextPowerOfTwo(200, 65536))
	assert.Equal(t, 1024, NextPowerOfTwo(1024, 65536))
	assert.Equal(t, 65536, NextPowerOfTwo(1_000_000, 65536))
}

func TestPercentileBounds(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, Percentile(data, 0))
	assert.Equal(t, 5.0, Percentile(data, 100))
	assert.Equal(t, 3.0, Percentile(data, 50))
}

func TestMedianOfLowerFractionIsBelowOverallMedian(t *testing.T) {
	data := []float64{-90, -89, -88, -87, -86, -10, -9, -8, -7, -6}
	lower := MedianOfLowerFraction(data, 0.4)
	overall := Percentile(data, 50)
	assert.Less(t, lower, overall)
}

func TestSpectralFlatnessOfConstantIsOne(t *testing.T) {
	data := make([]float64, 16)
	for i := range data {
		data[i] = 3.0
	}
	assert.InDelta(t, 1.0, SpectralFlatness(data), 1e-9)
}

func TestSpectralFlatnessOfSpikeIsLow(t *testing.T) {
	data := make([]float64, 16)
	for i := range data {
		data[i] = 1e-6
	}
	data[0] = 100
	assert.Less(t, SpectralFlatness(data), 0.3)
}

func TestPowerSpectrumDBDeterministic(t *testing.T) {
	samples := make([]complex128, 64)
	for i := range samples {
		samples[i] = complex(math.Sin(float64(i)), math.Cos(float64(i)))
	}
	a := PowerSpectrumDB(samples, 64)
	b := PowerSpectrumDB(samples, 64)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestInstantaneousFrequencyOfPureTone(t *testing.T) {
	sampleRate := uint64(48000)
	toneHz := 1000.0
	n := 256
	samples := make([]complex128, n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * toneHz * float64(i) / float64(sampleRate)
		samples[i] = complex(math.Cos(phase), math.Sin(phase))
	}
	freq := InstantaneousFrequency(samples, sampleRate)
	mean := Mean(freq)
	assert.InDelta(t, toneHz, mean, 1.0)
}

func TestPearsonCorrelationIdenticalIsOne(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6}
	assert.InDelta(t, 1.0, PearsonCorrelation(a, a), 1e-9)
}

func TestPearsonCorrelationNormalizesLength(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	b := []float64{1, 3, 5, 7} // same shape, half the length
	c := PearsonCorrelation(a, b)
	assert.Greater(t, c, 0.9)
}

func TestDTWDistanceIdenticalIsZero(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, DTWDistance(a, a, 5))
}

func TestBurstSimilarityIdenticalIsOne(t *testing.T) {
	a := []float64{0.01, 0.015, 0.012}
	assert.Equal(t, 1.0, BurstSimilarity(a, a, 5))
}

func TestBurstSimilarityEmptyBothIsOne(t *testing.T) {
	assert.Equal(t, 1.0, BurstSimilarity(nil, nil, 5))
}

// Property: CoefficientOfVariation of a constant-valued slice is always 0.
func TestPropertyConstantSliceHasZeroCV(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(0.01, 1000).Draw(t, "v")
		n := rapid.IntRange(1, 50).Draw(t, "n")
		data := make([]float64, n)
		for i := range data {
			data[i] = v
		}
		assert.InDelta(t, 0, CoefficientOfVariation(data), 1e-9)
	})
}

// Property: Percentile is monotonic non-decreasing in p.
func TestPropertyPercentileMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "n")
		data := make([]float64, n)
		for i := range data {
			data[i] = rapid.Float64Range(-100, 100).Draw(t, "v")
		}
		p1 := rapid.Float64Range(0, 100).Draw(t, "p1")
		p2 := rapid.Float64Range(0, 100).Draw(t, "p2")
		if p1 > p2 {
			p1, p2 = p2, p1
		}
		assert.LessOrEqual(t, Percentile(data, p1), Percentile(data, p2)+1e-9)
	})
}
