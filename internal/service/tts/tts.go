// Package tts synthesizes spoken replies. Providers are interchangeable
// and selected by configuration.
package tts

import (
	"context"
	"errors"
	"fmt"

	"interview-assistant-service/internal/models"
)

var (
	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("text is empty")
	// ErrRateLimited is returned when the provider throttles the request.
	ErrRateLimited = errors.New("rate limited")
)

// Speech is synthesized audio and its declared media type.
type Speech struct {
	Audio       []byte
	ContentType string
	Format      models.AudioFormat
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// SynthesisError describes a provider failure.
type SynthesisError struct {
	Provider string
	Code     string
	Message  string
	Cause    error
}

func (e *SynthesisError) Error() string {
	msg := fmt.Sprintf("%s tts failed", e.Provider)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SynthesisError) Unwrap() error { return e.Cause }
