// Package metrics implements the Performance Counters component (§2.10):
// atomic rolling counters with a lock-free snapshot read, optionally
// mirrored to Prometheus gauges/counters (grounded on the teacher's
// PrometheusMetrics struct of promauto collectors).
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot is a point-in-time read of all counters, safe to pass around
// and serialize.
type Snapshot struct {
	FramesProcessed      uint64
	FramesDropped        uint64
	SignalsDetected      uint64
	EventsEmitted        uint64
	EventsDroppedBackpressure uint64
	ReplayVerdicts       uint64
	JammingVerdicts      uint64
	BruteForceVerdicts   uint64
	CorrelatedEvents     uint64
	InvariantViolations  uint64
	WorkerDeadlineMisses uint64
}

// Counters holds the process-wide atomic counters, passed explicitly to
// the tasks that update them as a value of its own rather than a
// process-wide singleton, with an optional Prometheus mirror.
type Counters struct {
	framesProcessed      atomic.Uint64
	framesDropped        atomic.Uint64
	signalsDetected      atomic.Uint64
	eventsEmitted        atomic.Uint64
	eventsDroppedBackpressure atomic.Uint64
	replayVerdicts       atomic.Uint64
	jammingVerdicts      atomic.Uint64
	bruteForceVerdicts   atomic.Uint64
	correlatedEvents     atomic.Uint64
	invariantViolations  atomic.Uint64
	workerDeadlineMisses atomic.Uint64

	prom *promCollectors
}

type promCollectors struct {
	framesProcessed      prometheus.Counter
	framesDropped        prometheus.Counter
	signalsDetected      prometheus.Counter
	eventsEmitted        prometheus.Counter
	eventsDroppedBackpressure prometheus.Counter
	verdicts             *prometheus.CounterVec
	correlatedEvents     prometheus.Counter
	invariantViolations  prometheus.Counter
	workerDeadlineMisses prometheus.Counter
}

// New creates a Counters value with no Prometheus registration.
func New() *Counters {
	return &Counters{}
}

// NewWithPrometheus creates a Counters value and registers its mirror
// collectors against reg.
func NewWithPrometheus(reg prometheus.Registerer) *Counters {
	factory := promauto.With(reg)
	c := &Counters{
		prom: &promCollectors{
			framesProcessed: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_frames_processed_total",
				Help: "Total IQ frames successfully processed by the analyzer.",
			}),
			framesDropped: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_frames_dropped_total",
				Help: "Total IQ frames dropped due to FrameError or worker deadline.",
			}),
			signalsDetected: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_signals_detected_total",
				Help: "Total DetectedSignals produced by the analyzer.",
			}),
			eventsEmitted: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_events_emitted_total",
				Help: "Total SecurityEvents written to the outbound stream.",
			}),
			eventsDroppedBackpressure: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_events_dropped_backpressure_total",
				Help: "Total non-critical events dropped by the emitter's backpressure policy.",
			}),
			verdicts: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "rfthreat_verdicts_total",
				Help: "Total detector verdicts by kind.",
			}, []string{"kind"}),
			correlatedEvents: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_correlated_events_total",
				Help: "Total Correlated SecurityEvents produced by the proximity correlator.",
			}),
			invariantViolations: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_invariant_violations_total",
				Help: "Total InternalInvariantError occurrences.",
			}),
			workerDeadlineMisses: factory.NewCounter(prometheus.CounterOpts{
				Name: "rfthreat_worker_deadline_misses_total",
				Help: "Total FFT/similarity worker calls that exceeded their per-call deadline.",
			}),
		},
	}
	return c
}

func (c *Counters) IncFramesProcessed() {
	c.framesProcessed.Add(1)
	if c.prom != nil {
		c.prom.framesProcessed.Inc()
	}
}

func (c *Counters) IncFramesDropped() {
	c.framesDropped.Add(1)
	if c.prom != nil {
		c.prom.framesDropped.Inc()
	}
}

func (c *Counters) IncSignalsDetected() {
	c.signalsDetected.Add(1)
	if c.prom != nil {
		c.prom.signalsDetected.Inc()
	}
}

func (c *Counters) IncEventsEmitted() {
	c.eventsEmitted.Add(1)
	if c.prom != nil {
		c.prom.eventsEmitted.Inc()
	}
}

func (c *Counters) IncEventsDroppedBackpressure() {
	c.eventsDroppedBackpressure.Add(1)
	if c.prom != nil {
		c.prom.eventsDroppedBackpressure.Inc()
	}
}

func (c *Counters) IncVerdict(kind string) {
	switch kind {
	case "replay":
		c.replayVerdicts.Add(1)
	case "jamming":
		c.jammingVerdicts.Add(1)
	case "brute_force":
		c.bruteForceVerdicts.Add(1)
	}
	if c.prom != nil {
		c.prom.verdicts.WithLabelValues(kind).Inc()
	}
}

func (c *Counters) IncCorrelatedEvents() {
	c.correlatedEvents.Add(1)
	if c.prom != nil {
		c.prom.correlatedEvents.Inc()
	}
}

func (c *Counters) IncInvariantViolations() {
	c.invariantViolations.Add(1)
	if c.prom != nil {
		c.prom.invariantViolations.Inc()
	}
}

func (c *Counters) IncWorkerDeadlineMisses() {
	c.workerDeadlineMisses.Add(1)
	if c.prom != nil {
		c.prom.workerDeadlineMisses.Inc()
	}
}

// Snapshot takes a lock-free point-in-time read of all counters (§5:
// "Counters: monotonic atomic updates; snapshot reads are lock-free").
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		FramesProcessed:           c.framesProcessed.Load(),
		FramesDropped:             c.framesDropped.Load(),
		SignalsDetected:           c.signalsDetected.Load(),
		EventsEmitted:             c.eventsEmitted.Load(),
		EventsDroppedBackpressure: c.eventsDroppedBackpressure.Load(),
		ReplayVerdicts:            c.replayVerdicts.Load(),
		JammingVerdicts:           c.jammingVerdicts.Load(),
		BruteForceVerdicts:        c.bruteForceVerdicts.Load(),
		CorrelatedEvents:          c.correlatedEvents.Load(),
		InvariantViolations:       c.invariantViolations.Load(),
		WorkerDeadlineMisses:      c.workerDeadlineMisses.Load(),
	}
}
