package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khazna-backend/internal/config"
	"khazna-backend/internal/jobs"
)

func schedulerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scheduler.ReleaseOrphanedCarLocks = "0 */10 * * * *"
	cfg.Scheduler.ExpireStalePendingOperations = "0 */5 * * * *"
	cfg.Scheduler.DispatchNotifications = "*/30 * * * * *"
	cfg.Scheduler.PurgeSentNotifications = "0 0 3 * * *"
	return cfg
}

func TestNewScheduler_RegistersJobs(t *testing.T) {
	s, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, schedulerConfig()))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 4)
	assert.True(t, s.IsRunning())

	s.Start()
	s.Stop()
}

func TestNewScheduler_DisabledJob(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Scheduler.DispatchNotifications = "-"

	s, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 3)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Scheduler.PurgeSentNotifications = "every night"

	_, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	assert.ErrorContains(t, err, "PurgeSentNotifications")
}
