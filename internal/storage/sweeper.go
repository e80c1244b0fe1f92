package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/observability/metrics"
)

// Sweeper deletes reply audio older than a retention TTL.
type Sweeper struct {
	store    ObjectStore
	prefixes []string
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	cron     *cron.Cron
}

// NewSweeper creates a sweeper over the reply and notification prefixes.
func NewSweeper(store ObjectStore, ttl time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		prefixes: []string{PrefixOutput, PrefixNotifications},
		ttl:      ttl,
		now:      time.Now,
		metrics:  metrics.DefaultMetrics,
	}
}

// Sweep removes expired objects once and returns how many were deleted.
// A zero TTL keeps everything.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl)
	deleted := 0
	for _, prefix := range s.prefixes {
		objects, err := s.store.List(ctx, prefix)
		if err != nil {
			return deleted, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range objects {
			if !obj.LastModified.Before(cutoff) {
				continue
			}
			if err := s.store.Delete(ctx, obj.Key); err != nil {
				log.Warn().Err(err).Str("key", obj.Key).Msg("Retention delete failed")
				continue
			}
			deleted++
		}
	}
	s.metrics.RecordRetentionDeleted(deleted)
	return deleted, nil
}

// Start schedules Sweep on a cron spec such as "@hourly".
func (s *Sweeper) Start(schedule string) error {
	if s.ttl <= 0 {
		log.Info().Msg("Reply audio retention disabled, sweeper not scheduled")
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Retention sweep failed")
			return
		}
		log.Info().Int("deleted", n).Dur("ttl", s.ttl).Msg("Retention sweep completed")
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	log.Info().Str("schedule", schedule).Dur("ttl", s.ttl).Msg("Retention sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
