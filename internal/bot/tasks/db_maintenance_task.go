package tasks

import (
	"context"
	"fmt"
	"time"
)

// newDBMaintenanceTask creates the scheduled task that runs the profile
// store's maintenance routine. For the sqlite driver this vacuums the
// database; the file driver treats it as a no-op.
func newDBMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "db_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled profile store maintenance...")
		startTime := time.Now()

		err := deps.Store.RunMaintenance(ctx)
		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "Profile store maintenance failed", "error", err, "duration", duration)
			return fmt.Errorf("profile store maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Profile store maintenance completed", "duration", duration)
		return nil
	}
}
