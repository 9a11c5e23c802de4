// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_clock

import "time"

// Clock supplies wall time. Injectable for testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Func adapts a plain function to a Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Stopwatch measures elapsed time with pause/resume accumulation: pausing
// freezes the elapsed value, resuming continues from it. Not safe for
// concurrent use; the owner is expected to serialize access.
type Stopwatch struct {
	clock       Clock
	startedAt   time.Time
	accumulated time.Duration
	running     bool
}

func NewStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = System()
	}
	return &Stopwatch{clock: clock}
}

// Start begins measuring from zero.
func (s *Stopwatch) Start() {
	s.accumulated = 0
	s.startedAt = s.clock.Now()
	s.running = true
}

// Pause freezes the elapsed value. No-op when not running.
func (s *Stopwatch) Pause() {
	if !s.running {
		return
	}
	s.accumulated += s.clock.Now().Sub(s.startedAt)
	s.running = false
}

// Resume continues from the accumulated elapsed time. No-op while running.
func (s *Stopwatch) Resume() {
	if s.running {
		return
	}
	s.startedAt = s.clock.Now()
	s.running = true
}

// Elapsed returns the accumulated running time.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.running {
		return s.accumulated + s.clock.Now().Sub(s.startedAt)
	}
	return s.accumulated
}

// Reset stops measurement and drops the accumulated time.
func (s *Stopwatch) Reset() {
	s.accumulated = 0
	s.running = false
}

// Running reports whether the stopwatch is currently accumulating.
func (s *Stopwatch) Running() bool { return s.running }
