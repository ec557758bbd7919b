// Package history implements the bounded, time-windowed, thread-safe
// chronological store of detected signals (§4.3).
package history

import (
	"sort"
	"sync"

	"github.com/cwsl/rfthreat/internal/analyzer"
)

// History is a time-ordered store of DetectedSignals bounded by both a
// maximum size and a retention window. Writers hold an exclusive short
// critical section; readers take a consistent snapshot copy without
// blocking the writer for longer than a single slice copy, mirroring
// spectrum.go's GetLatestData pattern (RLock + copy-out).
type History struct {
	mu sync.RWMutex

	maxSize         int
	retentionWindow float64

	signals []analyzer.DetectedSignal
	nowFn   func() float64
}

// New creates a History bounded by maxSize entries and retentionWindow
// seconds. nowFn supplies the current time for retention checks; pass
// nil to use the latest timestamp among the held signals as
// "now" (appropriate for a pipeline driven purely by frame timestamps).
func New(maxSize int, retentionWindow float64, nowFn func() float64) *History {
	return &History{
		maxSize:         maxSize,
		retentionWindow: retentionWindow,
		nowFn:           nowFn,
	}
}

// Insert adds signal in chronological order by timestamp and evicts from
// the head while either bound is violated (§4.3). If signal's timestamp
// predates the current head by more than the retention window, the
// insert is dropped (the signal is considered too stale to matter).
func (h *History) Insert(signal analyzer.DetectedSignal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.signals) > 0 {
		head := h.signals[0]
		if head.Timestamp-signal.Timestamp > h.retentionWindow {
			return
		}
	}

	idx := sort.Search(len(h.signals), func(i int) bool {
		return h.signals[i].Timestamp > signal.Timestamp
	})
	h.signals = append(h.signals, analyzer.DetectedSignal{})
	copy(h.signals[idx+1:], h.signals[idx:])
	h.signals[idx] = signal

	h.evictLocked(signal.Timestamp)
}

func (h *History) evictLocked(now float64) {
	for len(h.signals) > h.maxSize {
		h.signals = h.signals[1:]
	}
	cut := 0
	for cut < len(h.signals) && now-h.signals[cut].Timestamp > h.retentionWindow {
		cut++
	}
	if cut > 0 {
		h.signals = h.signals[cut:]
	}
}

func (h *History) now() float64 {
	if h.nowFn != nil {
		return h.nowFn()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.signals) == 0 {
		return 0
	}
	return h.signals[len(h.signals)-1].Timestamp
}

// Recent returns an ordered snapshot of all signals with now-ts <=
// windowSeconds.
func (h *History) Recent(windowSeconds float64) []analyzer.DetectedSignal {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.signals) == 0 {
		return nil
	}
	now := h.signals[len(h.signals)-1].Timestamp
	if h.nowFn != nil {
		now = h.nowFn()
	}

	idx := sort.Search(len(h.signals), func(i int) bool {
		return now-h.signals[i].Timestamp <= windowSeconds
	})
	out := make([]analyzer.DetectedSignal, len(h.signals)-idx)
	copy(out, h.signals[idx:])
	return out
}

// ByType returns an ordered snapshot of signals of the given type within
// window seconds of now.
func (h *History) ByType(signalType analyzer.SignalType, windowSeconds float64) []analyzer.DetectedSignal {
	recent := h.Recent(windowSeconds)
	out := recent[:0:0]
	for _, s := range recent {
		if s.SignalType == signalType {
			out = append(out, s)
		}
	}
	return out
}

// ByCenterFreq returns an ordered snapshot of signals within
// toleranceHz of centerFreq, within window seconds of now.
func (h *History) ByCenterFreq(centerFreq uint64, toleranceHz float64, windowSeconds float64) []analyzer.DetectedSignal {
	recent := h.Recent(windowSeconds)
	out := recent[:0:0]
	for _, s := range recent {
		delta := float64(s.CenterFreq) - float64(centerFreq)
		if delta < 0 {
			delta = -delta
		}
		if delta <= toleranceHz {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the current number of stored signals.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.signals)
}

// Oldest returns the oldest stored signal, if any.
func (h *History) Oldest() (analyzer.DetectedSignal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.signals) == 0 {
		return analyzer.DetectedSignal{}, false
	}
	return h.signals[0], true
}

// Newest returns the signal with the latest timestamp, if any.
func (h *History) Newest() (analyzer.DetectedSignal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.signals) == 0 {
		return analyzer.DetectedSignal{}, false
	}
	return h.signals[len(h.signals)-1], true
}
