package dsp

import "math"

// DTWDistance computes the Dynamic Time Warping distance between two
// sequences with a Sakoe-Chiba band of the given window width, used for
// burst-timing similarity in the Replay Detector (§4.4: "DTW window <=
// 5"). No pack example implements DTW; this is a standard banded DTW
// with O(n*window) cost, grounded in the window-limited shape the spec
// calls for rather than any specific third-party library (gonum has no
// DTW implementation).
func DTWDistance(a, b []float64, window int) float64 {
	n, m := len(a), len(b)
	if n == 0 && m == 0 {
		return 0
	}
	if n == 0 || m == 0 {
		return math.Inf(1)
	}
	if window < 1 {
		window = 1
	}
	w := window
	if d := int(math.Abs(float64(n - m))); d > w {
		w = d
	}

	const inf = math.MaxFloat64 / 2
	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := range prev {
		prev[j] = inf
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		for j := range curr {
			curr[j] = inf
		}
		lo := i - w
		if lo < 1 {
			lo = 1
		}
		hi := i + w
		if hi > m {
			hi = m
		}
		for j := lo; j <= hi; j++ {
			cost := math.Abs(a[i-1] - b[j-1])
			best := prev[j]
			if prev[j-1] < best {
				best = prev[j-1]
			}
			if curr[j-1] < best {
				best = curr[j-1]
			}
			curr[j] = cost + best
		}
		prev, curr = curr, prev
	}

	return prev[m]
}

// BurstSimilarity converts a DTW distance between two burst-timing
// sequences into a [0,1] similarity score, clamped, per §4.4:
// "1 - DTW(burstsA, burstsB)/max_len, clamped to [0,1]".
func BurstSimilarity(a, b []float64, window int) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	d := DTWDistance(a, b, window)
	sim := 1 - d/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
