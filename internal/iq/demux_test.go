package iq

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t float64
	step float64
}

func (f *fakeClock) Now() float64 {
	f.t += f.step
	return f.t
}

func TestBuildFrameConvertsSamples(t *testing.T) {
	// i=0 -> -1.0, i=255 -> ~1.0, i=q=127.5-ish midpoint -> ~0
	raw := []byte{0, 0, 255, 255, 128, 128}
	d := New(bytes.NewReader(nil), 2_048_000, 433_920_000, 3, &fakeClock{step: 1}, 4)

	frame, err := d.buildFrame(raw)
	require.NoError(t, err)
	require.Len(t, frame.Samples, 3)

	assert.InDelta(t, -1.0, real(frame.Samples[0]), 1e-9)
	assert.InDelta(t, -1.0, imag(frame.Samples[0]), 1e-9)
	assert.Greater(t, real(frame.Samples[1]), 0.99)
	assert.InDelta(t, 0.5/127.5, real(frame.Samples[2]), 1e-9)
}

func TestBuildFrameRejectsOddByteCount(t *testing.T) {
	d := New(bytes.NewReader(nil), 2_048_000, 433_920_000, 1, &fakeClock{step: 1}, 4)
	_, err := d.buildFrame([]byte{1, 2, 3})
	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
}

func TestRunProducesFramesInOrderWithNonDecreasingTimestamps(t *testing.T) {
	frameSamples := 4
	// Two full frames worth of bytes.
	raw := make([]byte, 2*frameSamples*2)
	for i := range raw {
		raw[i] = byte(i % 256)
	}

	d := New(bytes.NewReader(raw), 2_048_000, 433_920_000, frameSamples, &fakeClock{step: 0.1}, 4)
	stop := make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(stop) }()

	var frames []Frame
	for f := range d.Frames() {
		frames = append(frames, f)
	}
	require.NoError(t, <-errCh)

	require.Len(t, frames, 2)
	assert.Len(t, frames[0].Samples, frameSamples)
	assert.Less(t, frames[0].Timestamp, frames[1].Timestamp)
}

func TestRunDropsShortFinalFrame(t *testing.T) {
	frameSamples := 4
	// One full frame plus a short partial frame (3 bytes = 1.5 samples,
	// an odd byte count), exercising the odd-length branch, which ends
	// Run once the extra drain read hits end of stream.
	raw := make([]byte, 2*frameSamples+3)
	d := New(bytes.NewReader(raw), 2_048_000, 433_920_000, frameSamples, &fakeClock{step: 1}, 4)
	stop := make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(stop) }()

	var frames []Frame
	for f := range d.Frames() {
		frames = append(frames, f)
	}
	require.NoError(t, <-errCh)
	assert.Len(t, frames, 1)
}

func TestRunDropsShortEvenFinalFrame(t *testing.T) {
	frameSamples := 4
	// One full frame plus a short partial frame with an even byte count
	// (2 bytes = 1 whole sample), which must shut down without invoking
	// the odd-byte drain path.
	raw := make([]byte, 2*frameSamples+2)
	d := New(bytes.NewReader(raw), 2_048_000, 433_920_000, frameSamples, &fakeClock{step: 1}, 4)
	stop := make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(stop) }()

	var frames []Frame
	for f := range d.Frames() {
		frames = append(frames, f)
	}
	require.NoError(t, <-errCh)
	assert.Len(t, frames, 1)
}

func TestDrainOddByteConsumesExactlyOneByte(t *testing.T) {
	r := bytes.NewReader([]byte{0xAB, 0xCD})
	require.NoError(t, DrainOddByte(r))

	remaining, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCD}, remaining)
}

func TestDrainOddByteReportsErrorOnExhaustedReader(t *testing.T) {
	r := bytes.NewReader(nil)
	assert.Error(t, DrainOddByte(r))
}
