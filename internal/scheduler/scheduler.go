// Package scheduler drives the periodic serve-mode cycles: forecast refresh
// on one cadence, footage scrape-and-download on another.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner is the orchestrator surface the scheduler drives.
type Runner interface {
	RefreshForecasts(ctx context.Context) error
	ScrapeFootage(ctx context.Context) error
	DownloadPending(ctx context.Context) error
}

// Scheduler owns the two recurring jobs. Jobs for the same tag never
// overlap: a slow scrape delays the next one rather than stacking browsers.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	logger    *slog.Logger

	fetchInterval  time.Duration
	scrapeInterval time.Duration
}

// New creates a Scheduler running jobs on the given cadences.
func New(runner Runner, fetchInterval, scrapeInterval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:      s,
		runner:         runner,
		logger:         logger,
		fetchInterval:  fetchInterval,
		scrapeInterval: scrapeInterval,
	}
}

// Start registers both jobs and begins running them asynchronously. Each job
// also fires once immediately so a fresh deployment has data before the
// first interval elapses.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.fetchInterval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchInterval)
		defer cancel()

		if err := s.runner.RefreshForecasts(ctx); err != nil {
			s.logger.Error("scheduled forecast refresh failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.scheduler.Every(s.scrapeInterval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.scrapeInterval)
		defer cancel()

		if err := s.runner.ScrapeFootage(ctx); err != nil {
			s.logger.Error("scheduled scrape failed", "error", err)
			return
		}
		if err := s.runner.DownloadPending(ctx); err != nil {
			s.logger.Error("scheduled download failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		"fetch_interval", s.fetchInterval, "scrape_interval", s.scrapeInterval)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
