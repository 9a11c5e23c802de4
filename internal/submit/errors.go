// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_submit

import "fmt"

// ErrorKind classifies a terminal submission failure so the caller can
// present an actionable message and decide what to preserve.
type ErrorKind string

const (
	// KindTimeout: an attempt (or every attempt) hit the per-attempt
	// timeout.
	KindTimeout ErrorKind = "timeout"
	// KindUnreachable: offline pre-flight failed or the host could not be
	// reached.
	KindUnreachable ErrorKind = "unreachable"
	// KindServer: the collector answered with a non-2xx status.
	KindServer ErrorKind = "server"
	// KindCancelled: the attempt was aborted by CancelAll or a parent
	// context. Never retried.
	KindCancelled ErrorKind = "cancelled"
)

// SubmissionError is the classified terminal outcome of Submit.
type SubmissionError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("submission failed after %d attempt(s): server returned %d", e.Attempts, e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("submission failed after %d attempt(s): request timeout", e.Attempts)
	case KindUnreachable:
		if e.Attempts == 0 {
			return "submission aborted: no network connectivity"
		}
		return fmt.Sprintf("submission failed after %d attempt(s): network unreachable", e.Attempts)
	case KindCancelled:
		return "submission cancelled"
	default:
		return fmt.Sprintf("submission failed after %d attempt(s)", e.Attempts)
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }
