package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"rently-backend/internal/jobs"
	"rently-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner. It fails
// when a configured cron spec does not parse.
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

// registerJobs registers all sweeps with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	specs := []struct {
		name string
		spec string
		run  func()
	}{
		{jobs.JobExpirePendingRentals, cfg.ExpirePendingRentals, s.jobs.ExpirePendingRentals},
		{jobs.JobCancelNoShowRentals, cfg.CancelNoShowRentals, s.jobs.CancelNoShowRentals},
		{jobs.JobSettleUnreturnedRentals, cfg.SettleUnreturnedRentals, s.jobs.SettleUnreturnedRentals},
		{jobs.JobExpireTopUps, cfg.ExpireTopUps, s.jobs.ExpireTopUps},
		{jobs.JobExpireWithdrawals, cfg.ExpireWithdrawals, s.jobs.ExpireWithdrawals},
	}
	for _, j := range specs {
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			logger.Error("Failed to register job", "job", j.name, "spec", j.spec, "error", err)
			return fmt.Errorf("failed to register %s job: %w", j.name, err)
		}
		logger.Debug("Registered job", "job", j.name, "spec", j.spec)
	}

	logger.Info("All cron jobs registered successfully", "count", len(specs))
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

// NextRuns returns the next activation of every registered job
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}
