package usecase

import (
	"context"
	"log/slog"
	"time"

	"PostTranslator/internal/ports"
)

// Janitor wires the ticker driver with counter maintenance.
type Janitor struct {
	driver ports.Scheduler
	purger ports.CounterPurger
	logger *slog.Logger
}

// NewJanitor returns a helper to start/stop the recurring counter purge.
func NewJanitor(driver ports.Scheduler, purger ports.CounterPurger, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{driver: driver, purger: purger, logger: logger}
}

// Start registers the purge with the provided scheduler.
func (j *Janitor) Start(ctx context.Context) error {
	if j.driver == nil || j.purger == nil {
		return nil
	}

	job := func(trigger time.Time) {
		j.Purge(ctx, trigger)
	}

	return j.driver.Start(ctx, job)
}

// Purge drops expired counters once; failures are logged.
func (j *Janitor) Purge(ctx context.Context, now time.Time) {
	removed, err := j.purger.PurgeExpired(ctx, now)
	if err != nil {
		j.logger.Warn("counter purge failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Debug("expired counters purged", "removed", removed)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.driver == nil {
		return nil
	}

	return j.driver.Stop(ctx)
}
