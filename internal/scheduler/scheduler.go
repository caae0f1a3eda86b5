package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"khazna-backend/internal/jobs"
	"khazna-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner.
// A malformed cron spec fails construction.
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	entries := []struct {
		name string
		spec string
		run  func()
	}{
		{"ExpireStalePendingOperations", cfg.ExpireStalePendingOperations, s.jobs.ExpireStalePendingOperations},
		{"ReleaseOrphanedCarLocks", cfg.ReleaseOrphanedCarLocks, s.jobs.ReleaseOrphanedCarLocks},
		{"DispatchNotifications", cfg.DispatchNotifications, s.jobs.DispatchNotifications},
		{"PurgeSentNotifications", cfg.PurgeSentNotifications, s.jobs.PurgeSentNotifications},
	}
	for _, e := range entries {
		if e.spec == "-" {
			logger.Info("Cron job disabled", "job", e.name)
			continue
		}
		if _, err := s.cron.AddFunc(e.spec, e.run); err != nil {
			return fmt.Errorf("failed to register %s job: %w", e.name, err)
		}
	}

	logger.Info("All cron jobs registered successfully", "count", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler has jobs registered
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
