// Package scheduler drives the recurring job cycle: sync remote sources,
// then generate missing forecasts, then apply retention. Upstream publishes
// a few times a day, so an hourly cadence keeps latency low without hammering
// the providers.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// Syncer runs one sync pass per source family.
type Syncer interface {
	SyncOpenIFS(ctx context.Context, explicitDate string) error
	SyncEnsemble(ctx context.Context, source domain.Source) error
}

// Generator runs the model for every input date missing an output.
type Generator interface {
	GenerateMissing(ctx context.Context, model domain.Source) error
}

// Cleaner applies the retention policy to the store.
type Cleaner interface {
	Run() error
}

// Scheduler loops forever, running a full job cycle every interval. Step
// failures are logged and the cycle continues; a wedged provider must not
// stop the others from syncing.
type Scheduler struct {
	Syncer    Syncer
	Generator Generator
	Cleaner   Cleaner
	// Ensembles are the IFS inputs to sync each cycle.
	Ensembles []domain.Source
	// Models are the cGAN products to generate each cycle.
	Models []domain.Source
	// Interval between cycle starts; defaults to one hour.
	Interval time.Duration
	Logger   *slog.Logger
	Clock    clockwork.Clock
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return time.Hour
}

// Run executes a cycle immediately, then once per interval until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Logger.Info("scheduler started", "interval", s.interval())
	s.runCycle(ctx)

	ticker := s.Clock.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := s.Clock.Now()

	if err := s.Syncer.SyncOpenIFS(ctx, ""); err != nil {
		s.Logger.Error("open-ifs sync failed", "error", err)
	}
	for _, source := range s.Ensembles {
		if ctx.Err() != nil {
			return
		}
		if err := s.Syncer.SyncEnsemble(ctx, source); err != nil {
			s.Logger.Error("ensemble sync failed", "source", source, "error", err)
		}
	}
	for _, model := range s.Models {
		if ctx.Err() != nil {
			return
		}
		if err := s.Generator.GenerateMissing(ctx, model); err != nil {
			s.Logger.Error("generation pass failed", "model", model, "error", err)
		}
	}
	if s.Cleaner != nil {
		if err := s.Cleaner.Run(); err != nil {
			s.Logger.Error("retention cleanup failed", "error", err)
		}
	}

	s.Logger.Info("job cycle finished", "duration", s.Clock.Since(start))
}
