// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_clock

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestStopwatchAccumulatesAcrossPause(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	sw := NewStopwatch(fc)

	sw.Start()
	fc.advance(10 * time.Second)
	if got := sw.Elapsed(); got != 10*time.Second {
		t.Fatalf("expected 10s elapsed, got %v", got)
	}

	sw.Pause()
	fc.advance(5 * time.Minute)
	if got := sw.Elapsed(); got != 10*time.Second {
		t.Fatalf("pause must freeze elapsed, got %v", got)
	}

	sw.Resume()
	fc.advance(20 * time.Second)
	if got := sw.Elapsed(); got != 30*time.Second {
		t.Fatalf("expected 30s elapsed after resume, got %v", got)
	}
}

func TestStopwatchPauseWhenIdleIsNoop(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	sw := NewStopwatch(fc)

	sw.Pause()
	if sw.Running() {
		t.Fatal("pause on idle stopwatch must not start it")
	}
	if sw.Elapsed() != 0 {
		t.Fatalf("expected zero elapsed, got %v", sw.Elapsed())
	}
}

func TestStopwatchResetDropsAccumulated(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	sw := NewStopwatch(fc)

	sw.Start()
	fc.advance(42 * time.Second)
	sw.Reset()

	if sw.Running() {
		t.Fatal("reset must stop the stopwatch")
	}
	if sw.Elapsed() != 0 {
		t.Fatalf("expected zero elapsed after reset, got %v", sw.Elapsed())
	}
}

func TestStopwatchStartRestartsFromZero(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	sw := NewStopwatch(fc)

	sw.Start()
	fc.advance(30 * time.Second)
	sw.Start()
	fc.advance(time.Second)

	if got := sw.Elapsed(); got != time.Second {
		t.Fatalf("expected 1s after restart, got %v", got)
	}
}
