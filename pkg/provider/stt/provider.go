// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (the OpenAI audio API or a
// local whisper-server instance) behind a single batch call: a complete audio
// file in, its transcript out. Voice notes arrive from the chat transport as
// finished files, so no streaming surface is needed.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"fmt"
)

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts a complete audio file into text. mimeType is the
	// attachment content type as reported by the transport (e.g., "audio/ogg").
	// Network and service failures are returned as a [*TranscriptionError].
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// Name returns the provider's registered name, for logs and metrics.
	Name() string
}

// TranscriptionError wraps a transcription service failure so callers can
// distinguish it from programming errors and feed it into the retry policy.
type TranscriptionError struct {
	// Provider is the name of the backend that failed.
	Provider string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("stt: %s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *TranscriptionError) Unwrap() error { return e.Err }
