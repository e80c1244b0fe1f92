// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithRequest returns a logger with pipeline request context.
func WithRequest(requestID, inputType string) zerolog.Logger {
	return log.With().
		Str("component", "pipeline").
		Str("requestId", requestID).
		Str("inputType", inputType).
		Logger()
}

// WithEvent returns a logger with inbound message context.
func WithEvent(messageID, channel, senderID string) zerolog.Logger {
	return log.With().
		Str("component", "router").
		Str("messageId", messageID).
		Str("channel", channel).
		Str("senderId", senderID).
		Logger()
}

// WithJob returns a logger with transcription job context.
func WithJob(requestID, jobID, provider string) zerolog.Logger {
	return log.With().
		Str("component", "pipeline").
		Str("requestId", requestID).
		Str("jobId", jobID).
		Str("sttProvider", provider).
		Logger()
}
