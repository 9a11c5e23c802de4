// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	internal_clock "github.com/rapidaai/dictamed/internal/clock"
	"github.com/rapidaai/dictamed/pkg/commons"
)

// Storage keys. The draft and the remembered credentials live under
// distinct keys with independent TTL policies.
const (
	DraftKey       = "dictamed_autosave"
	CredentialsKey = "dictamed_auth_credentials"
)

// ErrNotFound is returned when a key is absent or its TTL has expired.
var ErrNotFound = errors.New("draft store: not found")

// DraftState is the autosaved snapshot of in-progress form input. Only
// text fields are drafted, never audio.
type DraftState struct {
	Mode    string            `json:"mode"`
	Fields  map[string]string `json:"fields"`
	SavedAt time.Time         `json:"savedAt"`
}

// Credentials are the remembered sign-in values. No TTL; cleared only by
// explicit user action.
type Credentials struct {
	Username   string    `json:"username"`
	AccessCode string    `json:"accessCode"`
	SavedAt    time.Time `json:"savedAt"`
}

// Store is a key-value persistence layer with per-key TTL, backed by a
// local SQLite database.
type Store struct {
	db     *sql.DB
	clock  internal_clock.Clock
	logger commons.Logger
}

// Open opens (and initializes) the store at the given database path.
func Open(path string, clock internal_clock.Clock, logger commons.Logger) (*Store, error) {
	if clock == nil {
		clock = internal_clock.System()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping draft store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			saved_at INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize draft store: %w", err)
	}

	return &Store{db: db, clock: clock, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a value under key. ttl zero means the entry never expires.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.clock.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries(key, value, saved_at, ttl_ms) VALUES(?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, saved_at=excluded.saved_at, ttl_ms=excluded.ttl_ms
	`, key, value, now, ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get returns the value under key. Expired entries are deleted and
// reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, saved_at, ttl_ms FROM entries WHERE key = ?`, key)

	var value []byte
	var savedAt, ttlMs int64
	if err := row.Scan(&value, &savedAt, &ttlMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	if ttlMs > 0 {
		age := s.clock.Now().UnixMilli() - savedAt
		if age > ttlMs {
			if err := s.Delete(ctx, key); err != nil {
				s.logger.Warnf("draft store: unable to drop expired key %q: %v", key, err)
			}
			return nil, ErrNotFound
		}
	}
	return value, nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// SaveDraft persists the form snapshot under the draft key with the given
// TTL. SavedAt is stamped here.
func (s *Store) SaveDraft(ctx context.Context, draft DraftState, ttl time.Duration) error {
	draft.SavedAt = s.clock.Now()
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.Put(ctx, DraftKey, raw, ttl)
}

// LoadDraft returns the saved draft, ErrNotFound when absent or expired.
func (s *Store) LoadDraft(ctx context.Context) (*DraftState, error) {
	raw, err := s.Get(ctx, DraftKey)
	if err != nil {
		return nil, err
	}
	var draft DraftState
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

// ClearDraft drops the saved draft.
func (s *Store) ClearDraft(ctx context.Context) error {
	return s.Delete(ctx, DraftKey)
}

// SaveCredentials remembers sign-in values without expiry.
func (s *Store) SaveCredentials(ctx context.Context, creds Credentials) error {
	creds.SavedAt = s.clock.Now()
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.Put(ctx, CredentialsKey, raw, 0)
}

// LoadCredentials returns the remembered sign-in values.
func (s *Store) LoadCredentials(ctx context.Context) (*Credentials, error) {
	raw, err := s.Get(ctx, CredentialsKey)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &creds, nil
}

// ClearCredentials forgets the remembered sign-in values. Invoked when
// the remember toggle is disabled.
func (s *Store) ClearCredentials(ctx context.Context) error {
	return s.Delete(ctx, CredentialsKey)
}
