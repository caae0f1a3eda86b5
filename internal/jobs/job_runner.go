package jobs

import (
	"context"
	"time"

	"khazna-backend/internal/config"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/service"
)

// jobTimeout bounds one run so a hung database call cannot pile up cron runs.
const jobTimeout = 5 * time.Minute

// OutboxDispatcher is the part of notify.Dispatcher the jobs drive.
type OutboxDispatcher interface {
	DispatchOnce(ctx context.Context) (int, error)
	PurgeSent(ctx context.Context, retention time.Duration) (int64, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Operations service.OperationService
	Outbox     OutboxDispatcher
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger.Info("Starting job", "job", jobName)
	jobFunc(ctx)
	logger.Info("Job completed", "job", jobName)
}

// RunMaintenanceJobs runs every job once (for manual execution)
func (jr *JobRunner) RunMaintenanceJobs() {
	jr.ExpireStalePendingOperations()
	jr.ReleaseOrphanedCarLocks()
	jr.DispatchNotifications()
	jr.PurgeSentNotifications()
}
