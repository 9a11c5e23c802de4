// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/dictamed/config"
	internal_clock "github.com/rapidaai/dictamed/internal/clock"
	internal_draft "github.com/rapidaai/dictamed/internal/draft"
	internal_ui "github.com/rapidaai/dictamed/internal/ui"
	"github.com/rapidaai/dictamed/pkg/commons"
)

func testConfig(t *testing.T, endpoint string) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Name:        "dictamed",
		Version:     "8.0.0",
		LogLevel:    "error",
		StoragePath: t.TempDir(),
		API: config.APIConfig{
			NormalModeURL: endpoint,
			TestModeURL:   endpoint,
			Timeout:       2 * time.Second,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
		},
		Recording: config.RecordingConfig{
			MaxDuration: 120 * time.Second,
			MaxFileSize: 10 * 1024 * 1024,
			MinSections: 1,
		},
		AutoSave: config.AutoSaveConfig{
			Interval:   time.Hour,
			Debounce:   time.Hour,
			Expiration: 24 * time.Hour,
		},
	}
}

func writeAudioFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func okCollector(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","sections":1}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func seedDraft(t *testing.T, cfg *config.AppConfig, mode string) {
	t.Helper()
	store, err := internal_draft.Open(filepath.Join(cfg.StoragePath, "dictamed.db"), internal_clock.System(), commons.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SaveDraft(context.Background(), internal_draft.DraftState{
		Mode:   mode,
		Fields: map[string]string{"NumeroDeDossier": "D-77"},
	}, 24*time.Hour))
}

func loadDraft(t *testing.T, cfg *config.AppConfig) (*internal_draft.DraftState, error) {
	t.Helper()
	store, err := internal_draft.Open(filepath.Join(cfg.StoragePath, "dictamed.db"), internal_clock.System(), commons.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()
	return store.LoadDraft(context.Background())
}

func TestSubmitPreservesDraftInTestMode(t *testing.T) {
	var hits int32
	server := okCollector(t, &hits)
	cfg := testConfig(t, server.URL)
	seedDraft(t, cfg, "test")

	err := runSubmit(context.Background(), commons.NewNopLogger(), cfg, internal_ui.Noop{}, &submitOptions{
		mode:         "test",
		recordNumber: "D-77",
		patientName:  "Dupont",
		audio:        []string{"clinique=" + writeAudioFile(t, "clinique.mp3")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))

	// Test mode keeps the draft for review and resubmit.
	draft, err := loadDraft(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, "test", draft.Mode)
	assert.Equal(t, "D-77", draft.Fields["NumeroDeDossier"])
}

func TestSubmitClearsDraftInNormalMode(t *testing.T) {
	var hits int32
	server := okCollector(t, &hits)
	cfg := testConfig(t, server.URL)
	seedDraft(t, cfg, "normal")

	err := runSubmit(context.Background(), commons.NewNopLogger(), cfg, internal_ui.Noop{}, &submitOptions{
		mode:         "normal",
		username:     "dr.martin",
		accessCode:   "s3cret",
		recordNumber: "D-77",
		patientName:  "Dupont",
		audio:        []string{"partie1=" + writeAudioFile(t, "partie1.mp3")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))

	_, err = loadDraft(t, cfg)
	assert.ErrorIs(t, err, internal_draft.ErrNotFound)
}

func TestSubmitRejectedWithoutRecordings(t *testing.T) {
	var hits int32
	server := okCollector(t, &hits)
	cfg := testConfig(t, server.URL)

	err := runSubmit(context.Background(), commons.NewNopLogger(), cfg, internal_ui.Noop{}, &submitOptions{
		mode:         "test",
		recordNumber: "D-77",
		patientName:  "Dupont",
	})
	require.Error(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}
