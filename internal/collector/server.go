// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_collector

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	internal_payload "github.com/rapidaai/dictamed/internal/payload"
	"github.com/rapidaai/dictamed/pkg/commons"
	"github.com/rapidaai/dictamed/pkg/utils"
)

// Webhook paths. The normal-mode form and the test-mode form post to
// distinct endpoints.
const (
	TestModePath   = "/webhook/DictaMed"
	NormalModePath = "/webhook/DictaMedNormalMode"
)

type Config struct {
	StorageDir string
}

// Server is the development collector: it receives submission payloads,
// unpacks the audio to disk and acknowledges. It stands in for the
// production webhook during local work.
type Server struct {
	logger commons.Logger
	engine *gin.Engine
	dir    string
}

func NewServer(logger commons.Logger, cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		logger: logger,
		engine: gin.New(),
		dir:    cfg.StorageDir,
	}
	server.engine.Use(gin.Recovery())
	server.routes()
	return server
}

func (s *Server) routes() {
	webhook := s.engine.Group("/webhook")
	{
		webhook.POST("/DictaMed", s.handleSubmission)
		webhook.POST("/DictaMedNormalMode", s.handleSubmission)
	}
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Engine exposes the router for tests and embedding.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Infof("collector listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSubmission(c *gin.Context) {
	var payload internal_payload.SubmissionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if utils.IsEmpty(payload.RecordNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NumeroDeDossier is required"})
		return
	}
	if len(payload.Sections) == 0 && utils.IsEmpty(payload.Texte) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no sections and no texte"})
		return
	}

	stored := 0
	if s.dir != "" {
		var err error
		stored, err = s.persist(&payload)
		if err != nil {
			s.logger.Errorf("collector: unable to persist submission %s: %v", payload.RecordNumber, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
	} else {
		stored = len(payload.Sections)
	}

	s.logger.Infof("submission received: record=%s mode=%s sections=%d request_id=%s",
		payload.RecordNumber, payload.Mode, len(payload.Sections), c.GetHeader("X-Request-ID"))
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sections": stored,
	})
}

// persist writes each section's audio under <dir>/<record>/. File names
// come from the payload but are flattened to their base name.
func (s *Server) persist(payload *internal_payload.SubmissionPayload) (int, error) {
	record := sanitizeSegment(payload.RecordNumber)
	target := filepath.Join(s.dir, record)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return 0, err
	}

	stored := 0
	for sectionID, section := range payload.Sections {
		audio, err := base64.StdEncoding.DecodeString(section.AudioBase64)
		if err != nil {
			return stored, fmt.Errorf("section %s: %w", sectionID, err)
		}
		name := filepath.Base(section.FileName)
		if name == "." || name == string(filepath.Separator) {
			name = sectionID
		}
		if err := os.WriteFile(filepath.Join(target, name), audio, 0o644); err != nil {
			return stored, fmt.Errorf("section %s: %w", sectionID, err)
		}
		stored++
	}

	if payload.Texte != "" {
		if err := os.WriteFile(filepath.Join(target, "texte.txt"), []byte(payload.Texte), 0o644); err != nil {
			return stored, err
		}
	}
	for _, photo := range payload.Photos {
		data, err := base64.StdEncoding.DecodeString(photo.Base64)
		if err != nil {
			return stored, fmt.Errorf("photo %s: %w", photo.FileName, err)
		}
		if err := os.WriteFile(filepath.Join(target, filepath.Base(photo.FileName)), data, 0o644); err != nil {
			return stored, fmt.Errorf("photo %s: %w", photo.FileName, err)
		}
	}
	return stored, nil
}

func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	out := replacer.Replace(segment)
	if out == "" {
		out = "unknown"
	}
	return out
}
