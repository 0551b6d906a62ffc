package jobs

import (
	"context"
)

// ExpirePendingRentals refunds pending requests whose start date has passed
func (jr *JobRunner) ExpirePendingRentals() {
	jr.runWithRecovery("ExpirePendingRentals", func() {
		jr.expirePendingRentals(context.Background())
	})
}

func (jr *JobRunner) expirePendingRentals(ctx context.Context) SweepResult {
	rentals := jr.services.Rental
	return jr.sweep(ctx, JobExpirePendingRentals, rentals.DuePendingRentals, rentals.ExpirePendingRental)
}

// CancelNoShowRentals cancels accepted rentals the renter never picked up and
// pays the no-show penalty to the owner
func (jr *JobRunner) CancelNoShowRentals() {
	jr.runWithRecovery("CancelNoShowRentals", func() {
		jr.cancelNoShowRentals(context.Background())
	})
}

func (jr *JobRunner) cancelNoShowRentals(ctx context.Context) SweepResult {
	rentals := jr.services.Rental
	return jr.sweep(ctx, JobCancelNoShowRentals, rentals.DueNoShowRentals, rentals.CancelNoShowRental)
}

// SettleUnreturnedRentals forfeits the insurance of active rentals past the
// return grace period
func (jr *JobRunner) SettleUnreturnedRentals() {
	jr.runWithRecovery("SettleUnreturnedRentals", func() {
		jr.settleUnreturnedRentals(context.Background())
	})
}

func (jr *JobRunner) settleUnreturnedRentals(ctx context.Context) SweepResult {
	rentals := jr.services.Rental
	return jr.sweep(ctx, JobSettleUnreturnedRentals, rentals.DueUnreturnedRentals, rentals.SettleUnreturnedRental)
}
