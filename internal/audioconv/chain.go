// Package audioconv converts audio between container and codec formats.
// Conversions run through an ordered chain of strategies; the first one to
// succeed wins.
package audioconv

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/observability/metrics"
)

// ErrUnsupported is returned by a strategy that cannot handle a conversion.
var ErrUnsupported = errors.New("conversion not supported")

// Target describes the desired output.
type Target struct {
	Format     models.AudioFormat
	SampleRate int
	Channels   int
}

// SpeechTarget is the mono 16 kHz waveform fed to transcription.
var SpeechTarget = Target{Format: models.FormatWAV, SampleRate: 16000, Channels: 1}

// ReplyTarget returns the target for a synthesized reply in format f.
func ReplyTarget(f models.AudioFormat) Target {
	return Target{Format: f, SampleRate: 16000, Channels: 1}
}

// Strategy converts src into dst.
type Strategy interface {
	Name() string
	Convert(ctx context.Context, src, dst string, target Target) error
}

// Chain tries strategies in order.
type Chain struct {
	strategies []Strategy
	metrics    *metrics.Metrics
}

// NewChain builds a chain from strategies in priority order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, metrics: metrics.DefaultMetrics}
}

// Default returns the library-then-ffmpeg chain.
func Default(ffmpeg *FFmpeg) *Chain {
	return NewChain(NewLibrary(), ffmpeg)
}

// Convert stops at the first successful strategy and returns the last
// error when all of them fail.
func (c *Chain) Convert(ctx context.Context, src, dst string, target Target) error {
	if len(c.strategies) == 0 {
		return fmt.Errorf("no conversion strategies configured")
	}
	var lastErr error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.Convert(ctx, src, dst, target)
		c.metrics.RecordTranscode(s.Name(), err)
		if err == nil {
			log.Debug().Str("strategy", s.Name()).Str("format", string(target.Format)).Msg("Audio converted")
			return nil
		}
		log.Warn().Err(err).Str("strategy", s.Name()).Msg("Audio conversion strategy failed")
		lastErr = fmt.Errorf("%s: %w", s.Name(), err)
	}
	return lastErr
}
