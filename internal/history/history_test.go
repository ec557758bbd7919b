package history

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cwsl/rfthreat/internal/analyzer"
)

func sig(ts float64) analyzer.DetectedSignal {
	return analyzer.DetectedSignal{
		ID:         fmt.Sprintf("sig-%f", ts),
		Timestamp:  ts,
		CenterFreq: 433_920_000,
		SignalType: analyzer.SignalTypeKeyFob,
	}
}

func TestInsertMaintainsChronologicalOrder(t *testing.T) {
	h := New(100, 3600, nil)
	h.Insert(sig(3))
	h.Insert(sig(1))
	h.Insert(sig(2))

	recent := h.Recent(3600)
	require.Len(t, recent, 3)
	assert.Equal(t, 1.0, recent[0].Timestamp)
	assert.Equal(t, 2.0, recent[1].Timestamp)
	assert.Equal(t, 3.0, recent[2].Timestamp)
}

func TestInsertEvictsBeyondMaxSize(t *testing.T) {
	h := New(3, 3600, nil)
	for i := 1; i <= 5; i++ {
		h.Insert(sig(float64(i)))
	}
	assert.Equal(t, 3, h.Len())
	oldest, ok := h.Oldest()
	require.True(t, ok)
	assert.Equal(t, 3.0, oldest.Timestamp)
	newest, ok := h.Newest()
	require.True(t, ok)
	assert.Equal(t, 5.0, newest.Timestamp)
}

func TestInsertEvictsBeyondRetentionWindow(t *testing.T) {
	h := New(100, 10, nil)
	h.Insert(sig(0))
	h.Insert(sig(5))
	h.Insert(sig(20)) // now=20, retention=10 -> 0 and 5 both evicted

	assert.Equal(t, 1, h.Len())
	newest, ok := h.Newest()
	require.True(t, ok)
	assert.Equal(t, 20.0, newest.Timestamp)
}

func TestRecentFiltersByWindow(t *testing.T) {
	h := New(100, 3600, func() float64 { return 100 })
	h.Insert(sig(50))
	h.Insert(sig(90))
	h.Insert(sig(99))

	recent := h.Recent(20)
	require.Len(t, recent, 2)
	assert.Equal(t, 90.0, recent[0].Timestamp)
	assert.Equal(t, 99.0, recent[1].Timestamp)
}

func TestByTypeFiltersSignalType(t *testing.T) {
	h := New(100, 3600, nil)
	a := sig(1)
	a.SignalType = analyzer.SignalTypeTPMS
	h.Insert(a)
	h.Insert(sig(2))

	tpms := h.ByType(analyzer.SignalTypeTPMS, 3600)
	require.Len(t, tpms, 1)
	assert.Equal(t, analyzer.SignalTypeTPMS, tpms[0].SignalType)
}

func TestByCenterFreqFiltersByTolerance(t *testing.T) {
	h := New(100, 3600, nil)
	near := sig(1)
	near.CenterFreq = 433_921_000
	far := sig(2)
	far.CenterFreq = 868_000_000
	h.Insert(near)
	h.Insert(far)

	matches := h.ByCenterFreq(433_920_000, 5000, 3600)
	require.Len(t, matches, 1)
	assert.Equal(t, near.CenterFreq, matches[0].CenterFreq)
}

func TestEmptyHistoryReturnsNoOldestNewest(t *testing.T) {
	h := New(10, 3600, nil)
	_, ok := h.Oldest()
	assert.False(t, ok)
	_, ok = h.Newest()
	assert.False(t, ok)
	assert.Nil(t, h.Recent(3600))
}

func TestConcurrentInsertAndRead(t *testing.T) {
	h := New(1000, 3600, nil)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Insert(sig(float64(i)))
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Recent(3600)
			_ = h.Len()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, h.Len())
}

// Property (§8): len() never exceeds min(max_size, count within
// retention_window).
func TestPropertyHistoryNeverExceedsBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxSize := rapid.IntRange(1, 20).Draw(t, "maxSize")
		retention := rapid.Float64Range(1, 100).Draw(t, "retention")
		h := New(maxSize, retention, nil)

		n := rapid.IntRange(0, 50).Draw(t, "n")
		ts := 0.0
		for i := 0; i < n; i++ {
			ts += rapid.Float64Range(0, 10).Draw(t, "dt")
			h.Insert(sig(ts))
		}

		assert.LessOrEqual(t, h.Len(), maxSize)
		for _, s := range h.Recent(math.Inf(1)) {
			assert.LessOrEqual(t, ts-s.Timestamp, retention)
		}
	})
}
