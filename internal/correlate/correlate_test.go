package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/threat"
)

// fakeClock gives tests full control over deadline firing: After always
// returns the same channel, and the test fires it explicitly.
type fakeClock struct {
	now    float64
	timers chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{timers: make(chan time.Time, 8)}
}

func (f *fakeClock) Now() float64 { return f.now }

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	return f.timers
}

func (f *fakeClock) fire() {
	f.timers <- time.Now()
}

func runCorrelator(t *testing.T, cfg config.CorrelationConfig, clock Clock) (*Correlator, context.CancelFunc) {
	t.Helper()
	c := New(cfg, clock)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	return c, cancel
}

func maliciousEvent(id string, ts float64) threat.SecurityEvent {
	return threat.SecurityEvent{EventID: id, Timestamp: ts, ThreatLevel: threat.LevelMalicious, Source: threat.SourceRF}
}

func recvWithTimeout(t *testing.T, ch <-chan threat.SecurityEvent) threat.SecurityEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return threat.SecurityEvent{}
	}
}

func TestIdleToArmedEmitsActivation(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	c.SubmitRF(maliciousEvent("trigger", 10))

	passthrough := recvWithTimeout(t, c.Events())
	assert.Equal(t, "trigger", passthrough.EventID)

	activation := recvWithTimeout(t, c.Events())
	assert.Equal(t, "correlation_activated", activation.AuxKind)
	assert.Equal(t, "trigger", activation.RFTriggerID)
}

func TestArmedProximityProducesCorrelatedCritical(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	c.SubmitRF(maliciousEvent("trigger", 10))
	_ = recvWithTimeout(t, c.Events()) // passthrough
	_ = recvWithTimeout(t, c.Events()) // activation

	c.SubmitProximity(ProximityEvent{UID: "0A1B2C3D", Timestamp: 15})
	correlated := recvWithTimeout(t, c.Events())

	assert.Equal(t, threat.LevelCritical, correlated.ThreatLevel)
	assert.Equal(t, threat.SourceCorrelated, correlated.Source)
	assert.Equal(t, "trigger", correlated.RFTriggerID)
	assert.Equal(t, "0A1B2C3D", correlated.NFCUID)
	assert.InDelta(t, 5.0, correlated.TimeDeltaS, 1e-9)
}

func TestArmedDeadlineProducesTimeout(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	c.SubmitRF(maliciousEvent("trigger", 10))
	_ = recvWithTimeout(t, c.Events()) // passthrough
	_ = recvWithTimeout(t, c.Events()) // activation

	clock.fire()
	timeoutEvent := recvWithTimeout(t, c.Events())
	assert.Equal(t, "correlation_timeout", timeoutEvent.AuxKind)
}

func TestProximityInIdlePassesThroughAsBenignNFC(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	c.SubmitProximity(ProximityEvent{UID: "DEADBEEF", Timestamp: 1})
	event := recvWithTimeout(t, c.Events())
	assert.Equal(t, threat.SourceNFC, event.Source)
	assert.Equal(t, threat.LevelBenign, event.ThreatLevel)
}

func TestNonMaliciousRFInIdlePassesThroughWithoutArming(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	benign := threat.SecurityEvent{EventID: "b1", ThreatLevel: threat.LevelBenign}
	c.SubmitRF(benign)
	passthrough := recvWithTimeout(t, c.Events())
	assert.Equal(t, "b1", passthrough.EventID)

	// No activation should follow; proximity now should pass through
	// as idle NFC rather than correlating.
	c.SubmitProximity(ProximityEvent{UID: "CAFE", Timestamp: 2})
	event := recvWithTimeout(t, c.Events())
	assert.Equal(t, threat.SourceNFC, event.Source)
}

func TestAnotherMaliciousRFWhileArmedExtendsWithoutReactivation(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	c.SubmitRF(maliciousEvent("trigger1", 10))
	_ = recvWithTimeout(t, c.Events()) // passthrough
	_ = recvWithTimeout(t, c.Events()) // activation

	c.SubmitRF(maliciousEvent("trigger2", 15))
	passthrough2 := recvWithTimeout(t, c.Events())
	assert.Equal(t, "trigger2", passthrough2.EventID)

	// No second activation event should arrive; the next event must be
	// a correlation (or timeout), not another correlation_activated.
	c.SubmitProximity(ProximityEvent{UID: "BEEF", Timestamp: 20})
	correlated := recvWithTimeout(t, c.Events())
	assert.Equal(t, threat.SourceCorrelated, correlated.Source)
	assert.Equal(t, "trigger1", correlated.RFTriggerID, "original trigger is still remembered")
}

func TestSaturatedQueueDropsOldestNonCriticalButNeverDropsCritical(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 2}
	c, cancel := runCorrelator(t, cfg, clock)
	defer cancel()

	// Saturate the output queue with benign pass-throughs without
	// draining Events(), so emit() must evict to make room for what
	// follows. Events() buffers two and the drain loop holds one more,
	// so six are needed to overflow the two-entry queue.
	for i, uid := range []string{"AA", "BB", "CC", "DD", "EE", "FF"} {
		c.SubmitProximity(ProximityEvent{UID: uid, Timestamp: float64(i + 1)})
	}
	time.Sleep(20 * time.Millisecond)

	// Arm and correlate: the resulting Critical event must still reach
	// Events(), even though the output queue was already at capacity
	// with undrained pass-throughs.
	c.SubmitRF(maliciousEvent("trigger", 10))
	c.SubmitProximity(ProximityEvent{UID: "0A1B2C3D", Timestamp: 15})

	var sawCritical bool
	for i := 0; i < 10; i++ {
		event := recvWithTimeout(t, c.Events())
		if event.ThreatLevel == threat.LevelCritical {
			sawCritical = true
			assert.Equal(t, threat.SourceCorrelated, event.Source)
			assert.Equal(t, "0A1B2C3D", event.NFCUID)
			break
		}
	}
	require.True(t, sawCritical, "critical correlated event must never be dropped, even under a saturated output queue")
	assert.Greater(t, c.Dropped(), uint64(0), "excess non-critical pass-throughs should have been evicted and counted")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	clock := newFakeClock()
	cfg := config.CorrelationConfig{TimeoutSeconds: 30, QueueCapacity: 8}
	c, cancel := runCorrelator(t, cfg, clock)
	cancel()

	select {
	case _, open := <-c.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}
}
