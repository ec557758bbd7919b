package iq

import (
	"errors"
	"fmt"
	"io"
	"log"
)

// FrameError is returned for malformed or truncated input that the Demux
// recovers from locally (§7: FrameError).
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("iq: frame error: %s", e.Reason)
}

// Clock supplies monotonic-compatible wall-clock seconds for frame
// timestamps. Production code uses a real clock; tests inject a fake one
// to get deterministic, strictly-increasing timestamps.
type Clock interface {
	Now() float64
}

// Demux reads an interleaved unsigned-byte IQ stream and produces
// fixed-length Frames on a bounded channel (§4.1).
type Demux struct {
	source       io.Reader
	sampleRate   uint64
	centerFreq   uint64
	frameSamples int
	clock        Clock

	out chan Frame
}

// New creates a Demux reading from source, chunking into frames of
// frameSamples complex samples each.
func New(source io.Reader, sampleRate, centerFreq uint64, frameSamples int, clock Clock, queueCapacity int) *Demux {
	if queueCapacity <= 0 {
		queueCapacity = 1
	}
	return &Demux{
		source:       source,
		sampleRate:   sampleRate,
		centerFreq:   centerFreq,
		frameSamples: frameSamples,
		clock:        clock,
		out:          make(chan Frame, queueCapacity),
	}
}

// Frames returns the channel Frames are published on.
func (d *Demux) Frames() <-chan Frame {
	return d.out
}

// Run reads the source stream until EOF or ctx-style cancellation (via a
// closed stopChan), converting bytes to Frames and publishing them.
// Run never blocks other pipeline stages: sends are to a bounded channel
// sized by the caller, and the function returns (closing the output
// channel) on clean end-of-stream.
func (d *Demux) Run(stopChan <-chan struct{}) error {
	defer close(d.out)

	pairBuf := make([]byte, 2*d.frameSamples)

	for {
		select {
		case <-stopChan:
			return nil
		default:
		}

		n, err := io.ReadFull(d.source, pairBuf)
		switch {
		case errors.Is(err, io.EOF):
			// Clean end of stream with no partial data: shut down quietly.
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			if n%2 != 0 {
				// Malformed length: the final bytes before end of
				// stream don't divide into whole I/Q pairs. ReadFull has
				// already consumed them, so DrainOddByte reads one byte
				// more; on an ended stream that read fails and Run
				// returns as for an aligned short read, otherwise the
				// loop continues.
				log.Printf("WARN: iq: malformed length (odd byte count=%d) at end of stream, draining stray byte", n)
				if derr := DrainOddByte(d.source); derr != nil {
					return nil
				}
				continue
			}
			// Short read at end-of-stream: drop the partial frame and
			// signal clean shutdown (§4.1 failure semantics).
			log.Printf("WARN: iq: short read at end of stream, dropping partial frame (%d bytes)", n)
			return nil
		case err != nil:
			return fmt.Errorf("iq: read: %w", err)
		}

		frame, ferr := d.buildFrame(pairBuf)
		if ferr != nil {
			log.Printf("WARN: %v", ferr)
			continue
		}

		select {
		case d.out <- frame:
		case <-stopChan:
			return nil
		}
	}
}

// buildFrame converts a buffer of interleaved (i, q) byte pairs into a
// Frame. An odd total byte count cannot happen here because pairBuf's
// length is always even by construction; Run's odd-length short-read
// branch resolves that case via DrainOddByte before buildFrame is ever
// called with misaligned data.
func (d *Demux) buildFrame(raw []byte) (Frame, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return Frame{}, &FrameError{Reason: "odd byte count"}
	}

	samples := make([]complex128, len(raw)/2)
	for i := range samples {
		iByte := float64(raw[2*i])
		qByte := float64(raw[2*i+1])
		re := (iByte - 127.5) / 127.5
		im := (qByte - 127.5) / 127.5
		samples[i] = complex(re, im)
	}

	return Frame{
		Timestamp:  d.clock.Now(),
		SampleRate: d.sampleRate,
		CenterFreq: d.centerFreq,
		Samples:    samples,
	}, nil
}

// DrainOddByte reads exactly one byte from r, discards it and returns
// the read's error. Called from Run when io.ReadFull reports a short
// final read with an odd byte count; those bytes are already consumed,
// so on a stream that has ended this returns io.EOF.
func DrainOddByte(r io.Reader) error {
	var b [1]byte
	_, err := r.Read(b[:])
	return err
}
