// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_device

import (
	"context"
	"fmt"
	"sync"
)

// AcquireReason classifies why an audio input could not be acquired, so the
// caller can surface an actionable message per cause.
type AcquireReason string

const (
	ReasonPermissionDenied AcquireReason = "permission_denied"
	ReasonNotFound         AcquireReason = "not_found"
	ReasonBusy             AcquireReason = "busy"
	ReasonUnsupported      AcquireReason = "unsupported"
)

// AcquireError is the terminal failure of a device acquisition attempt.
type AcquireError struct {
	Reason AcquireReason
	Err    error
}

func (e *AcquireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device acquisition failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("device acquisition failed (%s)", e.Reason)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Stream delivers captured audio as a push stream of binary chunks. The
// channel is closed on completion; Err reports the terminal error, nil on a
// clean end of capture.
type Stream interface {
	MimeType() string
	Chunks() <-chan []byte
	Err() error
	// Close releases the underlying input. Safe to call more than once;
	// the input is released exactly once.
	Close() error
}

// Capturer acquires access to an audio input device. The concrete binding
// (microphone, file playback, test double) is an external collaborator.
type Capturer interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Gate enforces the single-owner rule for a physical input: while one
// stream is live, further Acquire calls through any capturer sharing the
// gate fail fast with ReasonBusy instead of queueing.
type Gate struct {
	mu   sync.Mutex
	held bool
}

func NewGate() *Gate {
	return &Gate{}
}

// Wrap puts a capturer behind the gate. Capturers wrapped by the same
// gate contend for the same input.
func (g *Gate) Wrap(inner Capturer) Capturer {
	return &exclusive{inner: inner, gate: g}
}

func (g *Gate) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

func (g *Gate) release() {
	g.mu.Lock()
	g.held = false
	g.mu.Unlock()
}

// Exclusive wraps a single capturer with single-owner semantics.
func Exclusive(inner Capturer) Capturer {
	return NewGate().Wrap(inner)
}

type exclusive struct {
	inner Capturer
	gate  *Gate
}

func (e *exclusive) Acquire(ctx context.Context) (Stream, error) {
	if !e.gate.tryAcquire() {
		return nil, &AcquireError{Reason: ReasonBusy}
	}

	stream, err := e.inner.Acquire(ctx)
	if err != nil {
		e.gate.release()
		return nil, err
	}
	return &exclusiveStream{Stream: stream, gate: e.gate}, nil
}

type exclusiveStream struct {
	Stream
	gate *Gate
	once sync.Once
}

func (s *exclusiveStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Stream.Close()
		s.gate.release()
	})
	return err
}
