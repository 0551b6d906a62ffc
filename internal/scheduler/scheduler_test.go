package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/config"
	"rently-backend/internal/jobs"
)

func schedulerConfig() *config.Config {
	spec := "0 */5 * * * *"
	return &config.Config{Scheduler: config.SchedulerConfig{
		ExpirePendingRentals:    spec,
		CancelNoShowRentals:     spec,
		SettleUnreturnedRentals: spec,
		ExpireTopUps:            spec,
		ExpireWithdrawals:       spec,
	}}
}

func TestNewScheduler(t *testing.T) {
	t.Run("Registers every sweep", func(t *testing.T) {
		s, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, schedulerConfig()))
		require.NoError(t, err)
		assert.True(t, s.IsRunning())
		assert.Len(t, s.cron.Entries(), 5)

		s.Start()
		for _, next := range s.NextRuns() {
			assert.Zero(t, next.Second())
			assert.Zero(t, next.Minute()%5)
		}
		s.Stop()
	})

	t.Run("Rejects a bad spec", func(t *testing.T) {
		cfg := schedulerConfig()
		cfg.Scheduler.ExpireTopUps = "every five minutes"
		_, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
		assert.Error(t, err)
	})
}
