// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_device

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileChunkSize = 32 * 1024

var extensionMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
}

// MimeTypeForPath maps an audio file extension to its MIME type. The
// second return is false for unsupported extensions.
func MimeTypeForPath(path string) (string, bool) {
	mime, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}

// fileCapturer streams a pre-recorded audio file as capture chunks. Used
// by the CLI, where dictation arrives as files instead of a microphone.
type fileCapturer struct {
	path string
}

func NewFileCapturer(path string) Capturer {
	return &fileCapturer{path: path}
}

func (c *fileCapturer) Acquire(ctx context.Context) (Stream, error) {
	mime, ok := MimeTypeForPath(c.path)
	if !ok {
		return nil, &AcquireError{Reason: ReasonUnsupported, Err: errors.New("unsupported audio format: " + filepath.Ext(c.path))}
	}

	file, err := os.Open(c.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, &AcquireError{Reason: ReasonNotFound, Err: err}
		case errors.Is(err, fs.ErrPermission):
			return nil, &AcquireError{Reason: ReasonPermissionDenied, Err: err}
		default:
			return nil, &AcquireError{Reason: ReasonUnsupported, Err: err}
		}
	}

	stream := &fileStream{
		mime:   mime,
		chunks: make(chan []byte),
		done:   make(chan struct{}),
	}
	go stream.pump(ctx, file)
	return stream, nil
}

type fileStream struct {
	mime   string
	chunks chan []byte

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	done      chan struct{}
}

func (s *fileStream) MimeType() string      { return s.mime }
func (s *fileStream) Chunks() <-chan []byte { return s.chunks }

func (s *fileStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fileStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *fileStream) pump(ctx context.Context, file *os.File) {
	defer close(s.chunks)
	defer file.Close()

	for {
		buf := make([]byte, fileChunkSize)
		n, err := file.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-s.done:
				return
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.setErr(err)
			}
			return
		}
	}
}

func (s *fileStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
