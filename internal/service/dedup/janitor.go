package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/observability/metrics"
)

// Pruner is implemented by stores whose expired ids stay behind until
// removed. Redis expires keys on its own and does not need one.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Janitor prunes a store on a cron schedule.
type Janitor struct {
	pruner  Pruner
	metrics *metrics.Metrics
	cron    *cron.Cron
}

// StartJanitor schedules pruning of store on a cron spec such as
// "@hourly". It returns a nil Janitor when store has nothing to prune.
func StartJanitor(store Store, schedule string) (*Janitor, error) {
	p, ok := store.(Pruner)
	if !ok {
		log.Info().Msg("Dedup store expires ids itself, janitor not scheduled")
		return nil, nil
	}
	j := &Janitor{pruner: p, metrics: metrics.DefaultMetrics, cron: cron.New()}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid dedup prune schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	log.Info().Str("schedule", schedule).Msg("Dedup janitor started")
	return j, nil
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := j.pruner.Prune(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Dedup prune failed")
		return
	}
	j.metrics.RecordDedupPruned(n)
	log.Debug().Int64("pruned", n).Msg("Dedup prune completed")
}

// Stop halts the schedule and waits for a running prune. Safe on nil.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	<-j.cron.Stop().Done()
}
