// Package scheduler runs the periodic maintenance jobs: model sync and
// chart file cleanup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"dataportal/internal/logger"
)

type ModelSyncer interface {
	Sync(ctx context.Context) error
}

type ChartCleaner interface {
	Cleanup(ttl time.Duration) (int, error)
}

type Config struct {
	// SyncSchedule is a cron spec; empty disables the model sync job.
	SyncSchedule    string
	CleanupSchedule string
	ChartTTL        time.Duration
}

type Scheduler struct {
	cron *cron.Cron
	lggr logger.Logger
}

// New registers the jobs of cfg. Invalid schedules are reported here,
// before anything runs.
func New(cfg Config, syncer ModelSyncer, cleaner ChartCleaner, lggr logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		lggr: lggr.Named("Scheduler"),
	}

	if cfg.SyncSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.SyncSchedule, func() { s.syncModel(syncer) }); err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.SyncSchedule, err)
		}
		s.lggr.Infow("Model sync scheduled", "schedule", cfg.SyncSchedule)
	}

	if cfg.CleanupSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.CleanupSchedule, func() { s.cleanCharts(cleaner, cfg.ChartTTL) }); err != nil {
			return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
		}
		s.lggr.Infow("Chart cleanup scheduled", "schedule", cfg.CleanupSchedule, "ttl", cfg.ChartTTL)
	}

	return s, nil
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) syncModel(syncer ModelSyncer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := syncer.Sync(ctx); err != nil {
		s.lggr.Errorw("Scheduled model sync failed", "err", err)
	}
}

func (s *Scheduler) cleanCharts(cleaner ChartCleaner, ttl time.Duration) {
	removed, err := cleaner.Cleanup(ttl)
	if err != nil {
		s.lggr.Errorw("Chart cleanup failed", "err", err)
		return
	}
	if removed > 0 {
		s.lggr.Infow("Removed expired charts", "count", removed)
	}
}
