package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersSnapshotReflectsIncrements(t *testing.T) {
	c := New()
	c.IncFramesProcessed()
	c.IncFramesProcessed()
	c.IncFramesDropped()
	c.IncSignalsDetected()
	c.IncEventsEmitted()
	c.IncVerdict("replay")
	c.IncVerdict("jamming")
	c.IncVerdict("brute_force")
	c.IncCorrelatedEvents()
	c.IncInvariantViolations()
	c.IncWorkerDeadlineMisses()
	c.IncEventsDroppedBackpressure()

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.FramesProcessed)
	assert.Equal(t, uint64(1), snap.FramesDropped)
	assert.Equal(t, uint64(1), snap.SignalsDetected)
	assert.Equal(t, uint64(1), snap.EventsEmitted)
	assert.Equal(t, uint64(1), snap.ReplayVerdicts)
	assert.Equal(t, uint64(1), snap.JammingVerdicts)
	assert.Equal(t, uint64(1), snap.BruteForceVerdicts)
	assert.Equal(t, uint64(1), snap.CorrelatedEvents)
	assert.Equal(t, uint64(1), snap.InvariantViolations)
	assert.Equal(t, uint64(1), snap.WorkerDeadlineMisses)
	assert.Equal(t, uint64(1), snap.EventsDroppedBackpressure)
}

func TestCountersConcurrentIncrementsAreConsistent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncFramesProcessed()
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(100), c.Snapshot().FramesProcessed)
}

func TestNewWithPrometheusRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithPrometheus(reg)
	c.IncFramesProcessed()

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, metricFamilies)
}
