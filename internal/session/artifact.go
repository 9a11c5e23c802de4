// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"encoding/base64"
	"strings"
	"time"
)

// Artifact is the immutable result of a completed capture. A new artifact
// always replaces the old one; the bytes are copied in and only copied out.
type Artifact struct {
	data     []byte
	mimeType string
	format   string
	duration time.Duration
}

func NewArtifact(data []byte, mimeType string, duration time.Duration) *Artifact {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Artifact{
		data:     buf,
		mimeType: mimeType,
		format:   FormatFromMimeType(mimeType),
		duration: duration,
	}
}

func (a *Artifact) MimeType() string { return a.mimeType }

func (a *Artifact) Format() string { return a.format }

func (a *Artifact) Duration() time.Duration { return a.duration }

func (a *Artifact) Size() int64 { return int64(len(a.data)) }

// Bytes returns a copy of the raw audio.
func (a *Artifact) Bytes() []byte {
	buf := make([]byte, len(a.data))
	copy(buf, a.data)
	return buf
}

// Base64 encodes the audio for transport. Encoding happens here, on
// demand, so no encoded copy is held while recording.
func (a *Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.data)
}

// FormatFromMimeType derives the short format name used in file names.
func FormatFromMimeType(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return "webm"
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "mp4"):
		return "mp4"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "mp3"
	case strings.Contains(mimeType, "wav"):
		return "wav"
	default:
		return "webm"
	}
}
