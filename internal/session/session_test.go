// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_device "github.com/rapidaai/dictamed/internal/device"
	internal_ui "github.com/rapidaai/dictamed/internal/ui"
	"github.com/rapidaai/dictamed/pkg/commons"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStream struct {
	mime string

	mu     sync.Mutex
	ch     chan []byte
	err    error
	closed bool
}

func newFakeStream(mime string) *fakeStream {
	return &fakeStream{mime: mime, ch: make(chan []byte, 16)}
}

func (f *fakeStream) MimeType() string      { return f.mime }
func (f *fakeStream) Chunks() <-chan []byte { return f.ch }

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

func (f *fakeStream) push(chunk []byte) { f.ch <- chunk }

// fail simulates a mid-capture device failure.
func (f *fakeStream) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	f.Close()
}

type fakeCapturer struct {
	stream *fakeStream
	err    error
	block  bool
}

func (f *fakeCapturer) Acquire(ctx context.Context) (internal_device.Stream, error) {
	if f.block {
		<-ctx.Done()
		return nil, &internal_device.AcquireError{Reason: internal_device.ReasonBusy, Err: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type notification struct {
	kind    internal_ui.Kind
	message string
	title   string
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []notification
}

func (f *fakeNotifier) Notify(kind internal_ui.Kind, message, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, notification{kind, message, title})
}

func (f *fakeNotifier) all() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notification, len(f.notes))
	copy(out, f.notes)
	return out
}

func newTestSession(capturer internal_device.Capturer, notifier internal_ui.Notifier, cfg Config) *Session {
	if cfg.SectionID == "" {
		cfg.SectionID = "partie1"
	}
	return New(commons.NewNopLogger(), capturer, notifier, cfg)
}

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached state %s, stuck at %s", want, s.State())
}

func TestStartStopLifecycle(t *testing.T) {
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	require.Equal(t, StateIdle, session.State())
	require.NoError(t, session.Start(context.Background()))
	require.Equal(t, StateRecording, session.State())

	stream.push([]byte("chunk-1"))
	stream.push([]byte("chunk-2"))

	require.NoError(t, session.Stop())
	assert.Equal(t, StateStopped, session.State())
	assert.True(t, session.HasRecording())

	artifact := session.Artifact()
	require.NotNil(t, artifact)
	assert.Equal(t, []byte("chunk-1chunk-2"), artifact.Bytes())
	assert.Equal(t, "audio/webm", artifact.MimeType())
	assert.Equal(t, "webm", artifact.Format())
}

func TestStopIsIdempotent(t *testing.T) {
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	require.NoError(t, session.Start(context.Background()))
	stream.push([]byte("audio"))
	require.NoError(t, session.Stop())

	first := session.Artifact()
	require.NoError(t, session.Stop())
	assert.Same(t, first, session.Artifact())
	assert.Equal(t, StateStopped, session.State())
}

func TestStartRejectedOutsideIdle(t *testing.T) {
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	require.NoError(t, session.Start(context.Background()))
	err := session.Start(context.Background())

	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "start", transition.Op)
	assert.Equal(t, StateRecording, transition.From)
	require.NoError(t, session.Stop())
}

func TestPauseExcludedFromElapsed(t *testing.T) {
	clock := newFakeClock()
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: clock})

	require.NoError(t, session.Start(context.Background()))
	clock.advance(5 * time.Second)
	session.Pause()
	assert.Equal(t, StatePaused, session.State())

	clock.advance(10 * time.Second)
	assert.Equal(t, 5*time.Second, session.Elapsed())

	session.Resume()
	clock.advance(3 * time.Second)
	require.NoError(t, session.Stop())

	assert.Equal(t, 8*time.Second, session.Artifact().Duration())
}

func TestPauseOutsideRecordingIsNoop(t *testing.T) {
	session := newTestSession(&fakeCapturer{stream: newFakeStream("audio/webm")}, &fakeNotifier{}, Config{Clock: newFakeClock()})
	session.Pause()
	assert.Equal(t, StateIdle, session.State())
	session.Resume()
	assert.Equal(t, StateIdle, session.State())
}

func TestAutoStopAtMaxDuration(t *testing.T) {
	clock := newFakeClock()
	notifier := &fakeNotifier{}
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, notifier, Config{Clock: clock})

	require.NoError(t, session.Start(context.Background()))
	stream.push([]byte("long dictation"))
	clock.advance(120 * time.Second)

	waitForState(t, session, StateStopped)
	require.NotNil(t, session.Artifact())
	assert.Equal(t, 120*time.Second, session.Artifact().Duration())

	notes := notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, internal_ui.KindInfo, notes[0].kind)
	assert.Equal(t, "Limite atteinte", notes[0].title)
	assert.Contains(t, notes[0].message, "120 secondes")
}

func TestNoAutoStopJustBelowCap(t *testing.T) {
	clock := newFakeClock()
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: clock})

	require.NoError(t, session.Start(context.Background()))
	clock.advance(119*time.Second + 900*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, StateRecording, session.State())
	require.NoError(t, session.Stop())
}

func TestDeleteDiscardsArtifact(t *testing.T) {
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	require.NoError(t, session.Start(context.Background()))
	stream.push([]byte("audio"))
	require.NoError(t, session.Stop())
	require.NotNil(t, session.Artifact())

	require.NoError(t, session.Delete())
	assert.Equal(t, StateIdle, session.State())
	assert.Nil(t, session.Artifact())
	assert.False(t, session.HasRecording())

	var transition *TransitionError
	assert.ErrorAs(t, session.Delete(), &transition)
}

func TestAcquireFailureReturnsToIdle(t *testing.T) {
	acquireErr := &internal_device.AcquireError{Reason: internal_device.ReasonPermissionDenied, Err: errors.New("denied")}
	errLog := commons.NewErrorLog(10)
	session := newTestSession(&fakeCapturer{err: acquireErr}, &fakeNotifier{}, Config{Clock: newFakeClock(), ErrorLog: errLog})

	err := session.Start(context.Background())
	var got *internal_device.AcquireError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, internal_device.ReasonPermissionDenied, got.Reason)
	assert.Equal(t, StateIdle, session.State())
	assert.Len(t, errLog.Entries(), 1)
}

func TestResetCancelsInFlightAcquire(t *testing.T) {
	session := newTestSession(&fakeCapturer{block: true}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	startErr := make(chan error, 1)
	go func() {
		startErr <- session.Start(context.Background())
	}()

	waitForState(t, session, StateAcquiring)
	session.Reset()

	select {
	case err := <-startErr:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("start never returned after reset")
	}
	assert.Equal(t, StateIdle, session.State())
}

func TestStreamFailureResetsAndNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	errLog := commons.NewErrorLog(10)
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, notifier, Config{Clock: newFakeClock(), ErrorLog: errLog})

	require.NoError(t, session.Start(context.Background()))
	stream.push([]byte("partial"))
	stream.fail(errors.New("device disconnected"))

	waitForState(t, session, StateIdle)
	assert.Nil(t, session.Artifact())
	assert.Len(t, errLog.Entries(), 1)

	notes := notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, internal_ui.KindError, notes[0].kind)
	assert.Contains(t, notes[0].message, "réessayer")
}

func TestDrainedSignalsStreamEnd(t *testing.T) {
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	require.NoError(t, session.Start(context.Background()))
	drained := session.Drained()

	select {
	case <-drained:
		t.Fatal("drained before the stream ended")
	default:
	}

	stream.push([]byte("tail"))
	stream.Close()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("drained never signalled")
	}

	require.NoError(t, session.Stop())
	assert.Equal(t, []byte("tail"), session.Artifact().Bytes())
}

func TestResetFromStoppedDiscardsEverything(t *testing.T) {
	stream := newFakeStream("audio/webm")
	session := newTestSession(&fakeCapturer{stream: stream}, &fakeNotifier{}, Config{Clock: newFakeClock()})

	require.NoError(t, session.Start(context.Background()))
	stream.push([]byte("audio"))
	require.NoError(t, session.Stop())

	session.Reset()
	assert.Equal(t, StateIdle, session.State())
	assert.Nil(t, session.Artifact())
	assert.Equal(t, time.Duration(0), session.Elapsed())
}
