// Package correlate implements the Proximity Correlator state machine
// (§4.8), running as its own cooperative task reading from two bounded
// input channels so it never blocks the main pipeline.
package correlate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/threat"
)

// ProximityEvent is a single observation from the inbound proximity
// stream: a hex UID and its observed timestamp.
type ProximityEvent struct {
	UID       string
	Timestamp float64
}

// Clock supplies wall-clock seconds and a timer, injectable for tests.
type Clock interface {
	Now() float64
	After(d time.Duration) <-chan time.Time
}

type realClock struct{ start time.Time }

func (c realClock) Now() float64                        { return time.Since(c.start).Seconds() }
func (c realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewRealClock returns a Clock backed by wall-clock time, zeroed at
// construction.
func NewRealClock() Clock { return realClock{start: time.Now()} }

type state int

const (
	stateIdle state = iota
	stateArmed
)

// outItem pairs a produced event with its priority so Critical events
// (the only ones the state machine itself generates as `correlatedEvent`)
// can survive a saturated output queue that a non-critical pass-through
// would be dropped from.
type outItem struct {
	event    threat.SecurityEvent
	critical bool
}

// Correlator implements the Idle/Armed state machine of §4.8.
type Correlator struct {
	cfg   config.CorrelationConfig
	clock Clock

	rfEvents  chan threat.SecurityEvent
	proximity chan ProximityEvent
	out       chan threat.SecurityEvent

	capacity int

	outMu     sync.Mutex
	outCond   *sync.Cond
	outQueue  []outItem
	outClosed bool
	dropped   uint64
}

// New creates a Correlator with bounded input channels of the configured
// capacity.
func New(cfg config.CorrelationConfig, clock Clock) *Correlator {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 1024
	}
	c := &Correlator{
		cfg:       cfg,
		clock:     clock,
		rfEvents:  make(chan threat.SecurityEvent, capacity),
		proximity: make(chan ProximityEvent, capacity),
		out:       make(chan threat.SecurityEvent, capacity),
		capacity:  capacity,
	}
	c.outCond = sync.NewCond(&c.outMu)
	go c.drainOut()
	return c
}

// SubmitRF enqueues a SecurityEvent for correlation consideration. Only
// Malicious-level RF events participate in arming the state machine;
// others are forwarded untouched via Events().
func (c *Correlator) SubmitRF(event threat.SecurityEvent) {
	c.rfEvents <- event
}

// SubmitProximity enqueues an observed ProximityEvent.
func (c *Correlator) SubmitProximity(event ProximityEvent) {
	c.proximity <- event
}

// Events returns the channel of produced SecurityEvents (pass-throughs,
// CorrelationActivated, Correlated, CorrelationTimeout).
func (c *Correlator) Events() <-chan threat.SecurityEvent {
	return c.out
}

const proximityConfidencePlaceholder = 0.95

// Run drives the state machine until ctx is cancelled, implementing
// §4.8. It owns a single pending deadline timer, cancelled on shutdown.
func (c *Correlator) Run(ctx context.Context) {
	defer c.closeOut()

	timeout := c.cfg.CorrelationTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	st := stateIdle
	var trigger threat.SecurityEvent
	var deadline <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case rf := <-c.rfEvents:
			switch st {
			case stateIdle:
				c.emit(rf)
				if rf.ThreatLevel == threat.LevelMalicious {
					trigger = rf
					st = stateArmed
					deadline = c.clock.After(timeout)
					c.emit(c.activationEvent(rf))
				}
			case stateArmed:
				c.emit(rf)
				if rf.ThreatLevel == threat.LevelMalicious {
					// Extend deadline to max(current, now+T_corr)
					// without re-emitting Activation.
					deadline = c.clock.After(timeout)
				}
			}

		case prox := <-c.proximity:
			switch st {
			case stateIdle:
				c.emit(c.passthroughEvent(prox))
			case stateArmed:
				c.emit(c.correlatedEvent(trigger, prox))
				st = stateIdle
				deadline = nil
			}

		case <-deadline:
			if st == stateArmed {
				c.emit(c.timeoutEvent(trigger))
				st = stateIdle
				deadline = nil
			}
		}
	}
}

// emit enqueues event for delivery via Events(), applying the same
// critical-never-drop / drop-oldest-non-critical policy as
// internal/emit.Emitter.Push (§4.9, §7's BackpressureDrop policy):
// Critical events (only ever correlatedEvent, §8 invariant 4) are never
// discarded, blocking until the drain loop makes room if the queue is
// saturated entirely with criticals. A full queue otherwise evicts its
// oldest non-critical entry, counting it in Dropped(); if nothing
// evictable remains, the new non-critical event is dropped and
// counted/logged.
func (c *Correlator) emit(event threat.SecurityEvent) {
	item := outItem{event: event, critical: event.ThreatLevel == threat.LevelCritical}

	c.outMu.Lock()
	defer c.outMu.Unlock()

	for len(c.outQueue) >= c.capacity {
		if evictedOldestNonCritical(&c.outQueue) {
			c.dropped++
			continue
		}
		if item.critical {
			c.outCond.Wait()
			continue
		}
		c.dropped++
		log.Printf("WARN: correlate: dropping event %s (source=%s, level=%s): output queue saturated", event.EventID, event.Source, event.ThreatLevel)
		return
	}

	c.outQueue = append(c.outQueue, item)
	c.outCond.Signal()
}

// evictedOldestNonCritical removes the oldest non-critical entry from
// queue, if any, reporting whether it evicted one.
func evictedOldestNonCritical(queue *[]outItem) bool {
	q := *queue
	for i := 0; i < len(q); i++ {
		if !q[i].critical {
			*queue = append(q[:i], q[i+1:]...)
			return true
		}
	}
	return false
}

// drainOut feeds the queue built by emit to the Events() channel,
// decoupling the state machine's select loop in Run from a stalled
// downstream consumer: a blocking send here never pauses Run.
func (c *Correlator) drainOut() {
	defer close(c.out)
	for {
		item, ok := c.popOut()
		if !ok {
			return
		}
		c.out <- item.event
	}
}

func (c *Correlator) popOut() (outItem, bool) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	for len(c.outQueue) == 0 && !c.outClosed {
		c.outCond.Wait()
	}
	if len(c.outQueue) == 0 {
		return outItem{}, false
	}
	item := c.outQueue[0]
	c.outQueue = c.outQueue[1:]
	c.outCond.Signal()
	return item, true
}

func (c *Correlator) closeOut() {
	c.outMu.Lock()
	c.outClosed = true
	c.outCond.Broadcast()
	c.outMu.Unlock()
}

// Dropped returns the count of non-critical events dropped so far by
// the output queue's backpressure policy.
func (c *Correlator) Dropped() uint64 {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.dropped
}

func (c *Correlator) activationEvent(trigger threat.SecurityEvent) threat.SecurityEvent {
	return threat.SecurityEvent{
		EventID:     trigger.EventID + "-activation",
		Timestamp:   c.clock.Now(),
		Source:      trigger.Source,
		ThreatLevel: trigger.ThreatLevel,
		AuxKind:     "correlation_activated",
		RFTriggerID: trigger.EventID,
	}
}

func (c *Correlator) timeoutEvent(trigger threat.SecurityEvent) threat.SecurityEvent {
	return threat.SecurityEvent{
		EventID:     trigger.EventID + "-timeout",
		Timestamp:   c.clock.Now(),
		Source:      trigger.Source,
		ThreatLevel: trigger.ThreatLevel,
		AuxKind:     "correlation_timeout",
		RFTriggerID: trigger.EventID,
	}
}

func (c *Correlator) correlatedEvent(trigger threat.SecurityEvent, prox ProximityEvent) threat.SecurityEvent {
	return threat.SecurityEvent{
		EventID:     trigger.EventID + "-correlated",
		Timestamp:   prox.Timestamp,
		Source:      threat.SourceCorrelated,
		ThreatLevel: threat.LevelCritical,
		Signal:      trigger.Signal,
		RFTriggerID: trigger.EventID,
		NFCUID:      prox.UID,
		TimeDeltaS:  prox.Timestamp - trigger.Timestamp,
		Supplemental: []threat.SupplementalEvidence{{
			Confidence: proximityConfidencePlaceholder,
		}},
		Action: threat.ActionCriticalAlert,
	}
}

func (c *Correlator) passthroughEvent(prox ProximityEvent) threat.SecurityEvent {
	return threat.SecurityEvent{
		EventID:     prox.UID + "-nfc",
		Timestamp:   prox.Timestamp,
		Source:      threat.SourceNFC,
		ThreatLevel: threat.LevelBenign,
		NFCUID:      prox.UID,
		Action:      threat.ActionMonitor,
	}
}
