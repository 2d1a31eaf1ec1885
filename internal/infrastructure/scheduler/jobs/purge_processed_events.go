// Package jobs contains the worker's scheduled maintenance jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURGE PROCESSED EVENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpiredMarkPurger deletes consumer dedup marks whose ttl has passed.
type ExpiredMarkPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeProcessedEventsJob keeps the dedup table bounded when Redis, which
// expires keys itself, is not in use.
type PurgeProcessedEventsJob struct {
	store  ExpiredMarkPurger
	logger *slog.Logger
}

// NewPurgeProcessedEventsJob creates the job.
func NewPurgeProcessedEventsJob(store ExpiredMarkPurger, logger *slog.Logger) *PurgeProcessedEventsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeProcessedEventsJob{store: store, logger: logger.With("job", "purge_processed_events")}
}

// Name implements scheduler.Job.
func (j *PurgeProcessedEventsJob) Name() string { return "purge_processed_events" }

// Run implements scheduler.Job.
func (j *PurgeProcessedEventsJob) Run(ctx context.Context) error {
	n, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge processed events: %w", err)
	}
	if n > 0 {
		j.logger.Info("purged expired dedup marks", "count", n)
	}
	return nil
}
