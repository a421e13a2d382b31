// Package providers holds the generative model clients used for fallback
// replies, intent classification and audio transcription.
package providers

import (
	"context"
	"errors"
)

// Provider is the interface all generative providers must implement.
type Provider interface {
	// Generate sends a prompt and returns the completion text. The caller
	// bounds the call with its context deadline.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the provider identifier (e.g. "gemini").
	Name() string
}

// Transcriber is implemented by providers that can turn audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error)
}

// TokenCounter is implemented by providers with an exact token count API.
// Callers treat a failure as "use your own estimate".
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// ErrEmptyCompletion is returned when the model answered with no usable text.
var ErrEmptyCompletion = errors.New("providers: empty completion")
