// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_submit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	internal_payload "github.com/rapidaai/dictamed/internal/payload"
	"github.com/rapidaai/dictamed/pkg/commons"
)

// NetworkStatus answers the pre-flight connectivity check. An offline
// answer fails the submission before any HTTP attempt is made.
type NetworkStatus interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// AlwaysOnline skips the pre-flight check.
func AlwaysOnline() NetworkStatus { return alwaysOnline{} }

// ServerAck is the collector's parsed acknowledgement of a submission.
type ServerAck struct {
	StatusCode int
	Fields     map[string]interface{}
	Raw        []byte
}

type Config struct {
	Timeout       time.Duration
	Attempts      int
	Delay         time.Duration
	ClientVersion string
	Online        NetworkStatus
	ErrorLog      *commons.ErrorLog
}

// Pipeline posts submission payloads to the collector with a bounded
// retry loop. Each attempt gets its own timeout and a fresh request id;
// only transient failures (timeout, connection error, 5xx) are retried.
type Pipeline struct {
	logger   commons.Logger
	client   *resty.Client
	timeout  time.Duration
	attempts int
	delay    time.Duration
	version  string
	online   NetworkStatus
	errors   *commons.ErrorLog

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewPipeline(logger commons.Logger, cfg Config) *Pipeline {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Online == nil {
		cfg.Online = AlwaysOnline()
	}
	return &Pipeline{
		logger:   logger,
		client:   resty.New().SetHeader("Content-Type", "application/json"),
		timeout:  cfg.Timeout,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		version:  cfg.ClientVersion,
		online:   cfg.Online,
		errors:   cfg.ErrorLog,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Submit posts the payload to endpoint. It returns the parsed server
// acknowledgement, or a *SubmissionError classifying the terminal
// failure. The payload itself is never mutated, so a failed submission
// leaves the form intact for a retry.
func (p *Pipeline) Submit(ctx context.Context, endpoint string, payload *internal_payload.SubmissionPayload) (*ServerAck, error) {
	if !p.online.Online() {
		err := &SubmissionError{Kind: KindUnreachable, Attempts: 0}
		p.record(err, endpoint, "")
		return nil, err
	}

	var last *SubmissionError
	for attempt := 1; attempt <= p.attempts; attempt++ {
		requestID := uuid.NewString()
		ack, err := p.post(ctx, endpoint, requestID, payload)
		if err == nil {
			p.logger.Infof("submission accepted: endpoint=%s attempt=%d request_id=%s", endpoint, attempt, requestID)
			return ack, nil
		}

		err.Attempts = attempt
		last = err
		p.logger.Warnf("submission attempt failed: attempt=%d/%d kind=%s request_id=%s err=%v",
			attempt, p.attempts, err.Kind, requestID, err.Err)

		if !err.retryable() {
			p.record(err, endpoint, requestID)
			return nil, err
		}
		if attempt < p.attempts && p.delay > 0 {
			if !p.wait(ctx) {
				cancelErr := &SubmissionError{Kind: KindCancelled, Attempts: attempt, Err: ctx.Err()}
				p.record(cancelErr, endpoint, requestID)
				return nil, cancelErr
			}
		}
	}

	p.record(last, endpoint, "")
	return nil, last
}

// CancelAll aborts every in-flight attempt. Aborted attempts surface as
// KindCancelled and are not retried.
func (p *Pipeline) CancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cancel := range p.inflight {
		cancel()
		delete(p.inflight, id)
	}
}

func (p *Pipeline) post(ctx context.Context, endpoint, requestID string, payload *internal_payload.SubmissionPayload) (*ServerAck, *SubmissionError) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	p.track(requestID, cancel)
	defer func() {
		p.untrack(requestID)
		cancel()
	}()

	resp, err := p.client.R().
		SetContext(attemptCtx).
		SetHeader("X-Request-ID", requestID).
		SetHeader("X-Client-Version", p.version).
		SetBody(payload).
		Post(endpoint)

	if err != nil {
		return nil, classifyTransport(attemptCtx, ctx, err)
	}

	status := resp.StatusCode()
	body := resp.Body()
	if status < 200 || status > 299 {
		return nil, &SubmissionError{Kind: KindServer, StatusCode: status, Body: string(body)}
	}

	ack := &ServerAck{StatusCode: status, Raw: append([]byte(nil), body...)}
	if len(body) > 0 {
		// Best effort; a non-JSON 2xx body is still a success.
		_ = json.Unmarshal(body, &ack.Fields)
	}
	return ack, nil
}

func classifyTransport(attemptCtx, parent context.Context, err error) *SubmissionError {
	switch {
	case parent.Err() != nil:
		return &SubmissionError{Kind: KindCancelled, Err: err}
	case attemptCtx.Err() == context.DeadlineExceeded:
		return &SubmissionError{Kind: KindTimeout, Err: err}
	case attemptCtx.Err() == context.Canceled:
		// CancelAll fired between attempts being set up and completing.
		return &SubmissionError{Kind: KindCancelled, Err: err}
	default:
		return &SubmissionError{Kind: KindUnreachable, Err: err}
	}
}

// transient reports whether the failure kind warrants another attempt.
// Server errors retry only on 5xx; client errors are final.
func transient(kind ErrorKind) bool {
	return kind == KindTimeout || kind == KindUnreachable
}

func (e *SubmissionError) retryable() bool {
	if e.Kind == KindServer {
		return e.StatusCode >= http.StatusInternalServerError
	}
	return transient(e.Kind)
}

func (p *Pipeline) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) track(id string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.inflight[id] = cancel
	p.mu.Unlock()
}

func (p *Pipeline) untrack(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

func (p *Pipeline) record(err *SubmissionError, endpoint, requestID string) {
	p.errors.Record(err, map[string]string{
		"endpoint":   endpoint,
		"request_id": requestID,
		"kind":       string(err.Kind),
	})
}
