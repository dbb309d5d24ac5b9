// Package worker clears staging entries left behind after a date is finalized.
package worker

import (
	"context"
	"fmt"
	"time"

	"crnumbers/internal/amqp"
	applog "crnumbers/internal/log"
	"crnumbers/internal/services"
)

// CleanupWorker handles queued cleanup requests and sweeps periodically as a backup for lost
// messages.
type CleanupWorker struct {
	maintenance *services.MaintenanceService
	logger      *applog.Logger
}

func NewCleanupWorker(maintenance *services.MaintenanceService, logger *applog.Logger) *CleanupWorker {
	return &CleanupWorker{maintenance: maintenance, logger: logger.WithComponent(applog.ComponentWorker)}
}

// HandleCleanupMessage clears staging for the message's date if that date has a report.
// A date with no report is acknowledged without deleting anything.
func (w *CleanupWorker) HandleCleanupMessage(ctx context.Context, msg *amqp.StagingCleanupMessage) error {
	finalized, n, err := w.maintenance.CleanupDate(ctx, msg.Date)
	if err != nil {
		return fmt.Errorf("cleanup %s: %w", msg.Date, err)
	}
	if !finalized {
		w.logger.WarnContext(ctx, "Cleanup requested for a date without a report, ignoring",
			applog.FieldDate, msg.Date.String(),
			applog.FieldAttempt, msg.Attempt)
		return nil
	}
	w.logger.InfoContext(ctx, "Staging cleanup completed",
		applog.FieldDate, msg.Date.String(),
		applog.FieldAttempt, msg.Attempt,
		applog.FieldCount, n)
	return nil
}

// SweepOrphans runs one pass over every staged date.
func (w *CleanupWorker) SweepOrphans(ctx context.Context) error {
	res, err := w.maintenance.SweepOrphanedStaging(ctx)
	if err != nil {
		return fmt.Errorf("sweep orphaned staging: %w", err)
	}
	if len(res.Dates) > 0 {
		w.logger.InfoContext(ctx, "Orphan sweep completed",
			"dates", len(res.Dates),
			applog.FieldCount, res.Deleted)
	}
	return nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (w *CleanupWorker) Run(ctx context.Context, interval time.Duration) {
	if err := w.SweepOrphans(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", applog.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.SweepOrphans(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sweep failed", applog.FieldError, err)
			}
		}
	}
}
