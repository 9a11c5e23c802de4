// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"fmt"
	"sync"
	"time"

	internal_clock "github.com/rapidaai/dictamed/internal/clock"
	internal_device "github.com/rapidaai/dictamed/internal/device"
	internal_ui "github.com/rapidaai/dictamed/internal/ui"
	"github.com/rapidaai/dictamed/pkg/commons"
)

// State is the capture lifecycle position of a session.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// DefaultMaxDuration is the hard recording cap.
const DefaultMaxDuration = 120 * time.Second

const capCheckInterval = 200 * time.Millisecond

// TransitionError reports an operation attempted from a state that does
// not allow it.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Op, e.From)
}

// capture accumulates the chunks of one acquisition. Each Start gets a
// fresh capture so a late chunk from a closed stream can never leak into
// the next recording.
type capture struct {
	data []byte
}

type Config struct {
	SectionID   string
	MaxDuration time.Duration
	Clock       internal_clock.Clock
	ErrorLog    *commons.ErrorLog
}

// Session owns the capture lifecycle of one recordable section. State
// transitions are strictly sequential: an in-flight start resolves or
// fails before any other operation is accepted.
type Session struct {
	logger   commons.Logger
	capturer internal_device.Capturer
	notifier internal_ui.Notifier

	sectionID   string
	maxDuration time.Duration
	errors      *commons.ErrorLog

	mu          sync.Mutex
	state       State
	stopwatch   *internal_clock.Stopwatch
	stream      internal_device.Stream
	current     *capture
	mimeType    string
	artifact    *Artifact
	cancel      context.CancelFunc
	consumeDone chan struct{}
	watchStop   chan struct{}
}

func New(logger commons.Logger, capturer internal_device.Capturer, notifier internal_ui.Notifier, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = internal_clock.System()
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	return &Session{
		logger:      logger,
		capturer:    capturer,
		notifier:    notifier,
		sectionID:   cfg.SectionID,
		maxDuration: cfg.MaxDuration,
		errors:      cfg.ErrorLog,
		state:       StateIdle,
		stopwatch:   internal_clock.NewStopwatch(cfg.Clock),
	}
}

func (s *Session) SectionID() string { return s.sectionID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the accumulated recording time, paused time excluded.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopwatch.Elapsed()
}

// Artifact returns the finalized recording, nil unless stopped.
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// HasRecording reports whether a completed artifact is present.
func (s *Session) HasRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateStopped && s.artifact != nil
}

// Drained returns a channel closed once the current capture stream has
// delivered everything it will. Non-interactive flows recording from a
// finite source wait on it before calling Stop.
func (s *Session) Drained() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeDone != nil {
		return s.consumeDone
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Start acquires the audio input and begins capture. Valid only from
// idle. On acquisition failure the session returns to idle and the error
// carries the device reason.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		from := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "start", From: from}
	}
	s.state = StateAcquiring
	captureCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	// Suspension point: the device prompt has no internal timeout, only
	// Reset can cancel it.
	stream, err := s.capturer.Acquire(captureCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateIdle
		s.cancel = nil
		cancel()
		s.errors.Record(err, map[string]string{"section": s.sectionID, "op": "start"})
		s.logger.Errorf("session %s: device acquisition failed: %v", s.sectionID, err)
		return err
	}

	if s.state != StateAcquiring {
		// Reset won the race while the device prompt was open.
		stream.Close()
		cancel()
		return &TransitionError{Op: "start", From: s.state}
	}

	cur := &capture{}
	s.stream = stream
	s.current = cur
	s.mimeType = stream.MimeType()
	s.artifact = nil
	s.stopwatch.Start()
	s.state = StateRecording
	s.consumeDone = make(chan struct{})
	s.watchStop = make(chan struct{})

	go s.consume(stream, cur, s.consumeDone)
	go s.watchCap(s.watchStop)

	s.logger.Debugf("session %s: recording started (%s)", s.sectionID, s.mimeType)
	return nil
}

// Pause freezes elapsed-time accumulation. No-op outside recording.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return
	}
	s.stopwatch.Pause()
	s.state = StatePaused
	s.logger.Debugf("session %s: paused at %v", s.sectionID, s.stopwatch.Elapsed())
}

// Resume continues accumulation from the paused elapsed time. No-op
// outside paused.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return
	}
	s.stopwatch.Resume()
	s.state = StateRecording
}

// Stop releases the device, drains pending chunks and finalizes the
// artifact. Valid from recording or paused; calling it again once stopped
// is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return nil
	case StateRecording, StatePaused:
	default:
		from := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "stop", From: from}
	}

	s.stopwatch.Pause()
	duration := s.stopwatch.Elapsed()
	stream := s.stream
	s.stream = nil
	cancel := s.cancel
	s.cancel = nil
	done := s.consumeDone
	s.consumeDone = nil
	watch := s.watchStop
	s.watchStop = nil
	cur := s.current
	mimeType := s.mimeType
	s.state = StateStopped
	s.mu.Unlock()

	if watch != nil {
		close(watch)
	}
	if stream != nil {
		stream.Close()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped || cur == nil {
		// Reset raced the drain; nothing to finalize.
		return nil
	}
	s.artifact = NewArtifact(cur.data, mimeType, duration)
	s.logger.Infof("session %s: recording stopped, %d bytes, %v", s.sectionID, s.artifact.Size(), duration)
	return nil
}

// Delete discards the artifact and returns to idle. Valid from stopped.
// Destructive-action confirmation is the caller's concern.
func (s *Session) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return &TransitionError{Op: "delete", From: s.state}
	}
	s.artifact = nil
	s.current = nil
	s.stopwatch.Reset()
	s.state = StateIdle
	s.logger.Debugf("session %s: recording deleted", s.sectionID)
	return nil
}

// Reset force-releases the device if held, cancels an in-flight
// acquisition, discards any artifact and returns to idle. Valid from any
// state; used for error recovery.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	stream := s.stream
	s.stream = nil
	watch := s.watchStop
	s.watchStop = nil
	s.consumeDone = nil
	s.current = nil
	s.artifact = nil
	s.stopwatch.Reset()
	s.state = StateIdle
	s.mu.Unlock()

	if watch != nil {
		close(watch)
	}
	if stream != nil {
		stream.Close()
	}
}

func (s *Session) consume(stream internal_device.Stream, cur *capture, done chan struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		s.mu.Lock()
		cur.data = append(cur.data, buf...)
		s.mu.Unlock()
	}
	if err := stream.Err(); err != nil {
		s.errors.Record(err, map[string]string{"section": s.sectionID, "op": "capture"})
		s.logger.Errorf("session %s: capture stream failed: %v", s.sectionID, err)
		s.mu.Lock()
		active := s.state == StateRecording || s.state == StatePaused
		s.mu.Unlock()
		if active {
			s.Reset()
			s.notifier.Notify(internal_ui.KindError,
				"Une erreur est survenue lors de l'enregistrement. Veuillez réessayer.",
				"Erreur d'enregistrement")
		}
	}
}

func (s *Session) watchCap(stop chan struct{}) {
	ticker := time.NewTicker(capCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.capReached() {
				s.autoStop()
				return
			}
		}
	}
}

// capReached reports whether accumulated recording time hit the hard cap.
func (s *Session) capReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return false
	}
	return s.stopwatch.Elapsed() >= s.maxDuration
}

func (s *Session) autoStop() {
	if err := s.Stop(); err != nil {
		s.logger.Errorf("session %s: auto-stop failed: %v", s.sectionID, err)
		return
	}
	s.notifier.Notify(internal_ui.KindInfo,
		fmt.Sprintf("Durée maximale de %d secondes atteinte. Enregistrement arrêté automatiquement.", int(s.maxDuration.Seconds())),
		"Limite atteinte")
}
