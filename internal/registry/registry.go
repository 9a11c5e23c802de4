// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_registry

import (
	"fmt"
	"sync"

	internal_session "github.com/rapidaai/dictamed/internal/session"
)

// Mode selects the active form and its recordable sections.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeTest   Mode = "test"
	ModeTexte  Mode = "texte"
)

// sectionsByMode is the static section layout, defined once at startup.
var sectionsByMode = map[Mode][]string{
	ModeNormal: {"partie1", "partie2", "partie3", "partie4"},
	ModeTest:   {"clinique", "antecedents", "biologie"},
	ModeTexte:  {},
}

// Sections returns the ordered section ids of a mode.
func Sections(mode Mode) []string {
	sections := sectionsByMode[mode]
	out := make([]string, len(sections))
	copy(out, sections)
	return out
}

// Valid reports whether the mode is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := sectionsByMode[m]
	return ok
}

// Registry maps section ids to their recording sessions per mode and
// exposes the aggregate completion count the submit gate keys off.
type Registry struct {
	mu       sync.Mutex
	sessions map[Mode]map[string]*internal_session.Session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[Mode]map[string]*internal_session.Session),
	}
}

// Register attaches a session to a section of a mode. The section must
// belong to the mode's static layout.
func (r *Registry) Register(mode Mode, session *internal_session.Session) error {
	id := session.SectionID()
	found := false
	for _, known := range sectionsByMode[mode] {
		if known == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("section %q does not belong to mode %q", id, mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[mode] == nil {
		r.sessions[mode] = make(map[string]*internal_session.Session)
	}
	r.sessions[mode][id] = session
	return nil
}

// Session returns the session bound to a section, nil when absent.
func (r *Registry) Session(mode Mode, sectionID string) *internal_session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[mode][sectionID]
}

// Completed returns the sessions holding a finished artifact, in the
// mode's section order.
func (r *Registry) Completed(mode Mode) []*internal_session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*internal_session.Session
	for _, id := range sectionsByMode[mode] {
		if s := r.sessions[mode][id]; s != nil && s.HasRecording() {
			out = append(out, s)
		}
	}
	return out
}

// CountCompleted returns the number of stopped sessions with an artifact.
func (r *Registry) CountCompleted(mode Mode) int {
	return len(r.Completed(mode))
}

// CanSubmit is the soft client-side gate: at least one completed section.
// The authoritative minimum is enforced by the payload builder.
func (r *Registry) CanSubmit(mode Mode) bool {
	if mode == ModeTexte {
		return true
	}
	return r.CountCompleted(mode) > 0
}

// Reset deletes or resets every session of the mode. Used after a
// successful submission or an explicit form clear.
func (r *Registry) Reset(mode Mode) {
	r.mu.Lock()
	sessions := make([]*internal_session.Session, 0, len(r.sessions[mode]))
	for _, s := range r.sessions[mode] {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Delete(); err != nil {
			s.Reset()
		}
	}
}
