// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_autosave

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	internal_draft "github.com/rapidaai/dictamed/internal/draft"
	"github.com/rapidaai/dictamed/pkg/commons"
)

// Defaults mirror the form's autosave cadence.
const (
	DefaultInterval = 30 * time.Second
	DefaultDebounce = 2 * time.Second
	DefaultTTL      = 24 * time.Hour
)

type Config struct {
	Interval time.Duration
	Debounce time.Duration
	TTL      time.Duration
}

// Coordinator persists form text input periodically and shortly after
// every edit. A single writer goroutine owns all store writes, so the
// interval sweep and the debounce flush can never race each other.
// Audio is never drafted.
type Coordinator struct {
	logger commons.Logger
	store  *internal_draft.Store

	interval time.Duration
	debounce time.Duration
	ttl      time.Duration

	mu     sync.Mutex
	mode   string
	fields map[string]string
	dirty  bool
	gen    uint64

	kick   chan struct{}
	group  *errgroup.Group
	cancel context.CancelFunc
}

func NewCoordinator(logger commons.Logger, store *internal_draft.Store, cfg Config) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Coordinator{
		logger:   logger,
		store:    store,
		interval: cfg.Interval,
		debounce: cfg.Debounce,
		ttl:      cfg.TTL,
		fields:   make(map[string]string),
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the writer goroutine. Stop flushes and waits for it.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)
	c.group = group
	c.cancel = cancel
	group.Go(func() error {
		return c.run(runCtx)
	})
}

// Stop terminates the writer after a final flush of pending changes.
func (c *Coordinator) Stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	return c.group.Wait()
}

// Changed records the latest form snapshot and schedules a debounced
// flush. Rapid successive edits collapse into one write.
func (c *Coordinator) Changed(mode string, fields map[string]string) {
	c.mu.Lock()
	c.mode = mode
	c.fields = make(map[string]string, len(fields))
	for k, v := range fields {
		c.fields[k] = v
	}
	c.dirty = true
	c.gen++
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Restore returns the saved draft when it belongs to the given mode and
// has not expired. A mode mismatch or an absent draft yields nil.
func (c *Coordinator) Restore(ctx context.Context, mode string) (*internal_draft.DraftState, error) {
	draft, err := c.store.LoadDraft(ctx)
	if err != nil {
		if err == internal_draft.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if draft.Mode != mode {
		c.logger.Debugf("autosave: draft mode %q does not match active mode %q, ignoring", draft.Mode, mode)
		return nil, nil
	}
	return draft, nil
}

// Clear drops the saved draft and the pending snapshot, so the interval
// sweep cannot resurrect it. Called after a successful submission.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.dirty = false
	c.mode = ""
	c.fields = make(map[string]string)
	c.mu.Unlock()
	return c.store.ClearDraft(ctx)
}

func (c *Coordinator) run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(c.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background(), false)
			return nil
		case <-c.kick:
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(c.debounce)
		case <-debounce.C:
			c.flush(ctx, false)
		case <-ticker.C:
			// The sweep saves regardless of recent edits so the draft
			// timestamp, and with it the TTL anchor, keeps moving while
			// the form is open.
			c.flush(ctx, true)
		}
	}
}

// flush writes the snapshot. The debounce and shutdown paths skip clean
// snapshots; the interval sweep forces a write to re-stamp SavedAt. Write
// failures are logged and the snapshot stays dirty for the next cycle.
func (c *Coordinator) flush(ctx context.Context, force bool) {
	c.mu.Lock()
	if !c.dirty && !force {
		c.mu.Unlock()
		return
	}
	if c.mode == "" {
		// Nothing has been captured yet, or the draft was just cleared.
		c.mu.Unlock()
		return
	}
	gen := c.gen
	draft := internal_draft.DraftState{
		Mode:   c.mode,
		Fields: make(map[string]string, len(c.fields)),
	}
	for k, v := range c.fields {
		draft.Fields[k] = v
	}
	c.mu.Unlock()

	if err := c.store.SaveDraft(ctx, draft, c.ttl); err != nil {
		c.logger.Warnf("autosave: draft write failed: %v", err)
		return
	}

	c.mu.Lock()
	// An edit that landed during the write stays dirty for the next cycle.
	if c.gen == gen {
		c.dirty = false
	}
	c.mu.Unlock()
	c.logger.Debugf("autosave: draft saved, %d field(s)", len(draft.Fields))
}
