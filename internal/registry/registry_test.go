// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_device "github.com/rapidaai/dictamed/internal/device"
	internal_session "github.com/rapidaai/dictamed/internal/session"
	internal_ui "github.com/rapidaai/dictamed/internal/ui"
	"github.com/rapidaai/dictamed/pkg/commons"
)

type staticStream struct {
	ch   chan []byte
	once sync.Once
}

func newStaticStream(data []byte) *staticStream {
	ch := make(chan []byte, 1)
	ch <- data
	return &staticStream{ch: ch}
}

func (s *staticStream) MimeType() string      { return "audio/webm" }
func (s *staticStream) Chunks() <-chan []byte { return s.ch }
func (s *staticStream) Err() error            { return nil }

func (s *staticStream) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type staticCapturer struct{}

func (staticCapturer) Acquire(ctx context.Context) (internal_device.Stream, error) {
	return newStaticStream([]byte("audio")), nil
}

func newSection(t *testing.T, id string) *internal_session.Session {
	t.Helper()
	return internal_session.New(commons.NewNopLogger(), staticCapturer{}, internal_ui.Noop{}, internal_session.Config{
		SectionID: id,
	})
}

// record drives a session through a full capture so it holds an artifact.
func record(t *testing.T, s *internal_session.Session) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.True(t, s.HasRecording())
}

func TestSectionsPerMode(t *testing.T) {
	assert.Equal(t, []string{"partie1", "partie2", "partie3", "partie4"}, Sections(ModeNormal))
	assert.Equal(t, []string{"clinique", "antecedents", "biologie"}, Sections(ModeTest))
	assert.Empty(t, Sections(ModeTexte))
}

func TestModeValid(t *testing.T) {
	assert.True(t, ModeNormal.Valid())
	assert.True(t, ModeTest.Valid())
	assert.True(t, ModeTexte.Valid())
	assert.False(t, Mode("dictation").Valid())
}

func TestRegisterRejectsForeignSection(t *testing.T) {
	registry := New()
	err := registry.Register(ModeTest, newSection(t, "partie1"))
	require.Error(t, err)
	assert.Nil(t, registry.Session(ModeTest, "partie1"))
}

func TestCompletedFollowsSectionOrder(t *testing.T) {
	registry := New()
	sections := map[string]*internal_session.Session{}
	for _, id := range Sections(ModeNormal) {
		s := newSection(t, id)
		require.NoError(t, registry.Register(ModeNormal, s))
		sections[id] = s
	}

	// Record out of order; Completed must still follow the layout.
	record(t, sections["partie3"])
	record(t, sections["partie1"])

	completed := registry.Completed(ModeNormal)
	require.Len(t, completed, 2)
	assert.Equal(t, "partie1", completed[0].SectionID())
	assert.Equal(t, "partie3", completed[1].SectionID())
	assert.Equal(t, 2, registry.CountCompleted(ModeNormal))
}

func TestCanSubmit(t *testing.T) {
	registry := New()
	s := newSection(t, "clinique")
	require.NoError(t, registry.Register(ModeTest, s))

	assert.False(t, registry.CanSubmit(ModeTest))
	record(t, s)
	assert.True(t, registry.CanSubmit(ModeTest))

	// Texte mode has no recordable sections and is always submittable.
	assert.True(t, registry.CanSubmit(ModeTexte))
}

func TestResetClearsRecordings(t *testing.T) {
	registry := New()
	s := newSection(t, "clinique")
	require.NoError(t, registry.Register(ModeTest, s))
	record(t, s)

	registry.Reset(ModeTest)
	assert.Equal(t, 0, registry.CountCompleted(ModeTest))
	assert.False(t, s.HasRecording())
	assert.Equal(t, internal_session.StateIdle, s.State())
}
