// Package emit implements the NDJSON Event Emitter: a bounded,
// multi-producer single-consumer outbound queue with a
// critical-events-never-drop policy (§4.9).
package emit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cwsl/rfthreat/internal/threat"
)

// queueItem pairs an event with its priority so critical events can be
// pushed to the head of the queue and survive a full-queue drop.
type queueItem struct {
	event    threat.SecurityEvent
	critical bool
}

// Emitter serializes SecurityEvents to NDJSON over w, draining a bounded
// internal queue. Writers never block on w; backpressure is absorbed by
// the queue and its drop policy.
type Emitter struct {
	w        io.Writer
	capacity int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []queueItem
	closed  bool
	dropped uint64
}

// New creates an Emitter writing to w with the given bounded queue
// capacity.
func New(w io.Writer, capacity int) *Emitter {
	if capacity <= 0 {
		capacity = 4096
	}
	e := &Emitter{w: w, capacity: capacity}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Push enqueues event for emission, implementing §4.9's drop policy: if
// the queue is full, the oldest non-critical event is dropped to make
// room; critical events are never dropped. A critical push when the
// queue is entirely full of critical events blocks until the consumer
// makes room, since dropping would violate the never-drop invariant.
func (e *Emitter) Push(event threat.SecurityEvent) {
	item := queueItem{event: event, critical: event.ThreatLevel == threat.LevelCritical}

	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.queue) >= e.capacity {
		if evictedOldestNonCritical(&e.queue) {
			e.dropped++
			continue
		}
		if item.critical {
			// Queue is saturated with critical events; wait for the
			// consumer to drain rather than drop one.
			e.cond.Wait()
			continue
		}
		e.dropped++
		return
	}

	if item.critical {
		e.queue = append([]queueItem{item}, e.queue...)
	} else {
		e.queue = append(e.queue, item)
	}
	e.cond.Signal()
}

// evictedOldestNonCritical removes the oldest (lowest-index) non-critical
// entry from queue, if any, and reports whether it evicted one.
func evictedOldestNonCritical(queue *[]queueItem) bool {
	q := *queue
	for i := 0; i < len(q); i++ {
		if !q[i].critical {
			*queue = append(q[:i], q[i+1:]...)
			return true
		}
	}
	return false
}

// Dropped returns the count of non-critical events dropped so far.
func (e *Emitter) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Run drains the queue to w as NDJSON until ctx is cancelled, then stops
// once the queue has drained.
func (e *Emitter) Run(ctx context.Context) error {
	bw := bufio.NewWriter(e.w)
	defer bw.Flush()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		e.mu.Lock()
		e.closed = true
		e.cond.Broadcast()
		e.mu.Unlock()
		close(done)
	}()

	for {
		item, ok := e.pop()
		if !ok {
			return nil
		}
		if err := writeNDJSON(bw, item.event); err != nil {
			log.Printf("ERROR: emit: write failed: %v", err)
			return err
		}
		if err := bw.Flush(); err != nil {
			log.Printf("ERROR: emit: flush failed: %v", err)
			return err
		}
	}
}

func (e *Emitter) pop() (queueItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) == 0 && !e.closed {
		e.cond.Wait()
	}
	if len(e.queue) == 0 {
		return queueItem{}, false
	}
	item := e.queue[0]
	e.queue = e.queue[1:]
	e.cond.Signal()
	return item, true
}

// Drain flushes the remaining queue to w up to deadline, used during
// graceful shutdown (§5: "drains the outbound queue up to a deadline").
func (e *Emitter) Drain(deadline time.Duration) (drained int, err error) {
	bw := bufio.NewWriter(e.w)
	defer bw.Flush()

	cutoff := time.Now().Add(deadline)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return drained, nil
		}
		item := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if time.Now().After(cutoff) {
			log.Printf("WARN: emit: shutdown drain deadline exceeded with items remaining")
			return drained, fmt.Errorf("emit: drain deadline exceeded")
		}
		if err := writeNDJSON(bw, item.event); err != nil {
			return drained, err
		}
		drained++
	}
}

func writeNDJSON(w io.Writer, event threat.SecurityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
