package jobs

import (
	"context"
)

// ExpireTopUps fails top-ups the provider never confirmed
func (jr *JobRunner) ExpireTopUps() {
	jr.runWithRecovery("ExpireTopUps", func() {
		jr.expireTopUps(context.Background())
	})
}

func (jr *JobRunner) expireTopUps(ctx context.Context) SweepResult {
	payments := jr.services.Payment
	return jr.sweep(ctx, JobExpireTopUps, payments.DueTopUps, payments.ExpireTopUp)
}

// ExpireWithdrawals returns held funds of withdrawals nobody processed in time
func (jr *JobRunner) ExpireWithdrawals() {
	jr.runWithRecovery("ExpireWithdrawals", func() {
		jr.expireWithdrawals(context.Background())
	})
}

func (jr *JobRunner) expireWithdrawals(ctx context.Context) SweepResult {
	payments := jr.services.Payment
	return jr.sweep(ctx, JobExpireWithdrawals, payments.DueWithdrawals, payments.ExpireWithdrawal)
}
