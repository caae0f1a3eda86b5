package jobs

import (
	"context"

	"khazna-backend/internal/logger"
)

// ExpireStalePendingOperations aborts operations that were opened but never
// advanced, releasing their cars.
func (jr *JobRunner) ExpireStalePendingOperations() {
	jr.runWithRecovery("ExpireStalePendingOperations", func(ctx context.Context) {
		count, err := jr.services.Operations.ExpireStalePending(ctx, jr.config.StalePendingAge())
		if err != nil {
			logger.Error("Failed to expire stale operations", "error", err)
			return
		}
		logger.Info("Stale operations expired", "count", count)
	})
}

// ReleaseOrphanedCarLocks clears the balance lock of cars left blocked without
// an active operation.
func (jr *JobRunner) ReleaseOrphanedCarLocks() {
	jr.runWithRecovery("ReleaseOrphanedCarLocks", func(ctx context.Context) {
		count, err := jr.services.Operations.ReleaseOrphanedLocks(ctx)
		if err != nil {
			logger.Error("Failed to release orphaned car locks", "error", err)
			return
		}
		if count > 0 {
			logger.Warn("Released orphaned car locks", "count", count)
		}
	})
}
