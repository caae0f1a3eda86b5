package jobs

import (
	"context"
	"time"

	"khazna-backend/internal/logger"
)

// maxDispatchRounds caps one DispatchNotifications run.
const maxDispatchRounds = 20

// DispatchNotifications drains the outbox for processes that do not run the
// dispatcher loop, such as the cronjob binary.
func (jr *JobRunner) DispatchNotifications() {
	jr.runWithRecovery("DispatchNotifications", func(ctx context.Context) {
		total := 0
		for round := 0; round < maxDispatchRounds; round++ {
			n, err := jr.services.Outbox.DispatchOnce(ctx)
			if err != nil {
				logger.Error("Failed to dispatch notifications", "error", err)
				break
			}
			total += n
			if n < jr.config.Notifications.BatchSize {
				break
			}
		}
		logger.Info("Notifications dispatched", "count", total)
	})
}

// PurgeSentNotifications deletes delivered outbox rows past retention.
func (jr *JobRunner) PurgeSentNotifications() {
	jr.runWithRecovery("PurgeSentNotifications", func(ctx context.Context) {
		retention := time.Duration(jr.config.Notifications.RetentionDays) * 24 * time.Hour
		count, err := jr.services.Outbox.PurgeSent(ctx, retention)
		if err != nil {
			logger.Error("Failed to purge sent notifications", "error", err)
			return
		}
		logger.Info("Sent notifications purged", "count", count)
	})
}
