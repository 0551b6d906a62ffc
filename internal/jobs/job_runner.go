package jobs

import (
	"context"
	"fmt"
	"sort"

	"rently-backend/internal/config"
	"rently-backend/internal/logger"
	"rently-backend/internal/service"
)

const (
	JobExpirePendingRentals    = "expire-pending-rentals"
	JobCancelNoShowRentals     = "cancel-no-show-rentals"
	JobSettleUnreturnedRentals = "settle-unreturned-rentals"
	JobExpireTopUps            = "expire-top-ups"
	JobExpireWithdrawals       = "expire-withdrawals"
	JobAll                     = "all"
)

// JobRunner coordinates the reconciliation sweeps
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Rental  service.RentalService
	Payment service.PaymentService
}

// SweepResult counts what one run of a sweep did.
type SweepResult struct {
	Due     int
	Applied int
	Skipped int
	Failed  int
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

type dueFunc func(ctx context.Context, limit int) ([]string, error)
type applyFunc func(ctx context.Context, id string) (bool, error)

// sweep pages through due ids and applies each in its own atomic unit. A failed
// record is logged and left for the next run. Ids already handled in this run
// are excluded by widening the next page, so a page of records that keep
// failing cannot hide the ones behind it.
func (jr *JobRunner) sweep(ctx context.Context, name string, due dueFunc, apply applyFunc) SweepResult {
	var result SweepResult
	limit := jr.batchSize()
	seen := make(map[string]struct{})
	for {
		want := limit + len(seen)
		ids, err := due(ctx, want)
		if err != nil {
			logger.Error("Failed to list due records", "job", name, "error", err)
			break
		}

		fresh := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fresh++

			applied, err := apply(ctx, id)
			switch {
			case err != nil:
				result.Failed++
				logger.Error("Failed to reconcile record", "job", name, "id", id, "error", err)
			case applied:
				result.Applied++
			default:
				result.Skipped++
			}
		}
		result.Due += fresh

		if len(ids) < want || fresh == 0 || ctx.Err() != nil {
			break
		}
	}
	logger.Info("Sweep finished", "job", name, "due", result.Due, "applied", result.Applied, "skipped", result.Skipped, "failed", result.Failed)
	return result
}

func (jr *JobRunner) batchSize() int {
	if jr.config != nil && jr.config.Escrow.SweepBatchSize > 0 {
		return jr.config.Escrow.SweepBatchSize
	}
	return 100
}

// Jobs returns every sweep keyed by its command line name
func (jr *JobRunner) Jobs() map[string]func() {
	return map[string]func(){
		JobExpirePendingRentals:    jr.ExpirePendingRentals,
		JobCancelNoShowRentals:     jr.CancelNoShowRentals,
		JobSettleUnreturnedRentals: jr.SettleUnreturnedRentals,
		JobExpireTopUps:            jr.ExpireTopUps,
		JobExpireWithdrawals:       jr.ExpireWithdrawals,
	}
}

// Names lists the sweep names in a stable order
func (jr *JobRunner) Names() []string {
	jobs := jr.Jobs()
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one sweep by name, or every sweep for "all"
func (jr *JobRunner) Run(name string) error {
	if name == JobAll {
		jr.RunAll()
		return nil
	}
	job, ok := jr.Jobs()[name]
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	job()
	return nil
}

// RunAll runs all sweeps (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpirePendingRentals()
	jr.CancelNoShowRentals()
	jr.SettleUnreturnedRentals()
	jr.ExpireTopUps()
	jr.ExpireWithdrawals()
}
