package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/config"
	"rently-backend/internal/domain"
	"rently-backend/internal/escrow"
	"rently-backend/internal/repository/memory"
	"rently-backend/internal/service"
)

var baseTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	ctx      context.Context
	clock    *clock
	ledger   service.LedgerService
	rentals  service.RentalService
	payments service.PaymentService
	runner   *JobRunner
}

func newHarness(t *testing.T, batch int) *harness {
	t.Helper()
	c := &clock{now: baseTime}
	store := memory.NewStore()
	opts := []service.Option{service.WithClock(c.Now)}
	users := service.NewUserService(store, opts...)

	h := &harness{
		ctx:      context.Background(),
		clock:    c,
		ledger:   service.NewLedgerService(store, opts...),
		rentals:  service.NewRentalService(store, escrow.DefaultCalculator(), service.DefaultRentalPolicy(), opts...),
		payments: service.NewPaymentService(store, service.DefaultPaymentPolicy(), opts...),
	}
	cfg := &config.Config{Escrow: config.EscrowConfig{SweepBatchSize: batch}}
	h.runner = NewJobRunner(&Services{Rental: h.rentals, Payment: h.payments}, cfg)

	_, err := h.ledger.EnsureAdminWallet(h.ctx)
	require.NoError(t, err)
	for _, id := range []string{"renter", "owner"} {
		_, _, err := users.Onboard(h.ctx, &domain.User{ID: id, Email: id + "@example.com"})
		require.NoError(t, err)
	}
	wallets, err := h.ledger.ResolveWallets(h.ctx, "renter")
	require.NoError(t, err)
	_, err = h.ledger.Transfer(h.ctx, nil, &wallets.User.ID, 10_000, domain.PurposeTopUpStripe, "seed")
	require.NoError(t, err)
	return h
}

func (h *harness) request(t *testing.T, item string, start time.Time) *domain.RentalRequest {
	t.Helper()
	r, err := h.rentals.CreateRentalRequest(h.ctx, "renter", item, domain.RentalTerms{
		OwnerID:        "owner",
		RentalType:     domain.RentalTypeDaily,
		RentalQuantity: 2,
		StartDate:      start,
		EndDate:        start.Add(48 * time.Hour),
		RentalPrice:    100,
		OriginalValue:  200,
		InsuranceRate:  0.1,
	})
	require.NoError(t, err)
	return r
}

func (h *harness) renterBalances(t *testing.T) (int64, int64) {
	t.Helper()
	w, err := h.ledger.ResolveWallets(h.ctx, "renter")
	require.NoError(t, err)
	return w.User.Balance, w.Holding.Balance
}

func TestExpirePendingRentals_ConcurrentRuns(t *testing.T) {
	h := newHarness(t, 100)
	start := baseTime.Add(24 * time.Hour)
	h.request(t, "item-1", start)
	h.request(t, "item-2", start)
	h.clock.Set(start.Add(time.Minute))

	var (
		wg      sync.WaitGroup
		results [2]SweepResult
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.runner.expirePendingRentals(h.ctx)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, results[0].Applied+results[1].Applied)
	assert.Zero(t, results[0].Failed+results[1].Failed)

	user, holding := h.renterBalances(t)
	assert.Equal(t, int64(10_000), user)
	assert.Equal(t, int64(0), holding)

	again := h.runner.expirePendingRentals(h.ctx)
	assert.Equal(t, SweepResult{}, again)
}

func TestSweep_PagesThroughBatches(t *testing.T) {
	h := newHarness(t, 2)
	start := baseTime.Add(24 * time.Hour)
	for _, item := range []string{"a", "b", "c", "d", "e"} {
		h.request(t, item, start)
	}
	h.clock.Set(start.Add(time.Minute))

	result := h.runner.expirePendingRentals(h.ctx)
	assert.Equal(t, 5, result.Applied)
	assert.Equal(t, 5, result.Due)
}

func TestSweep_ContinuesPastFailures(t *testing.T) {
	h := newHarness(t, 10)
	calls := 0
	due := func(ctx context.Context, limit int) ([]string, error) {
		calls++
		return []string{"bad", "good", "gone"}, nil
	}
	apply := func(ctx context.Context, id string) (bool, error) {
		switch id {
		case "bad":
			return false, errors.New("boom")
		case "good":
			return true, nil
		}
		return false, nil
	}

	result := h.runner.sweep(h.ctx, "test", due, apply)
	assert.Equal(t, SweepResult{Due: 3, Applied: 1, Skipped: 1, Failed: 1}, result)
	assert.Equal(t, 1, calls)

	t.Run("Listing failure ends the run", func(t *testing.T) {
		failing := func(ctx context.Context, limit int) ([]string, error) {
			return nil, errors.New("db down")
		}
		assert.Equal(t, SweepResult{}, h.runner.sweep(h.ctx, "test", failing, apply))
	})

	t.Run("Panics are recovered", func(t *testing.T) {
		assert.NotPanics(t, func() {
			h.runner.runWithRecovery("panicky", func() { panic("boom") })
		})
	})
}

func TestSweep_FailingPageDoesNotStarveLaterRecords(t *testing.T) {
	h := newHarness(t, 2)
	start := baseTime.Add(24 * time.Hour)
	stuck := []*domain.RentalRequest{h.request(t, "a", start), h.request(t, "b", start)}

	// Drain the escrow so both refunds fail every run.
	wallets, err := h.ledger.ResolveWallets(h.ctx, "renter")
	require.NoError(t, err)
	_, err = h.ledger.Transfer(h.ctx, &wallets.Holding.ID, nil, wallets.Holding.Balance, domain.PurposeWithdrawalPayoutBank, "drain")
	require.NoError(t, err)

	// A healthy request from another renter, due after the stuck ones.
	owner, err := h.ledger.ResolveWallets(h.ctx, "owner")
	require.NoError(t, err)
	_, err = h.ledger.Transfer(h.ctx, nil, &owner.User.ID, 1_000, domain.PurposeTopUpStripe, "seed-owner")
	require.NoError(t, err)
	healthy, err := h.rentals.CreateRentalRequest(h.ctx, "owner", "c", domain.RentalTerms{
		OwnerID:        "renter",
		RentalType:     domain.RentalTypeDaily,
		RentalQuantity: 1,
		StartDate:      start.Add(time.Hour),
		EndDate:        start.Add(25 * time.Hour),
		RentalPrice:    50,
		OriginalValue:  100,
		InsuranceRate:  0.1,
	})
	require.NoError(t, err)

	h.clock.Set(start.Add(2 * time.Hour))
	result := h.runner.expirePendingRentals(h.ctx)
	assert.Equal(t, SweepResult{Due: 3, Applied: 1, Failed: 2}, result)

	got, err := h.rentals.GetRental(h.ctx, domain.Actor{UserID: "owner"}, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusOutdated, got.Status)
	for _, r := range stuck {
		got, err := h.rentals.GetRental(h.ctx, domain.Actor{UserID: "renter"}, r.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusPending, got.Status)
	}

	t.Run("Fake listing honours the limit", func(t *testing.T) {
		all := []string{"bad-1", "bad-2", "bad-3", "good"}
		due := func(ctx context.Context, limit int) ([]string, error) {
			if limit > len(all) {
				limit = len(all)
			}
			return all[:limit], nil
		}
		apply := func(ctx context.Context, id string) (bool, error) {
			if id == "good" {
				return true, nil
			}
			return false, errors.New("wallet missing")
		}
		assert.Equal(t, SweepResult{Due: 4, Applied: 1, Failed: 3}, h.runner.sweep(h.ctx, "test", due, apply))
	})
}

func TestNoShowAndUnreturnedSweeps(t *testing.T) {
	h := newHarness(t, 100)
	start := baseTime.Add(24 * time.Hour)

	noShow := h.request(t, "no-show", start)
	_, err := h.rentals.TransitionRental(h.ctx, noShow.ID, domain.RentalActionAccept, "owner", "")
	require.NoError(t, err)

	kept := h.request(t, "kept", start)
	accepted, err := h.rentals.TransitionRental(h.ctx, kept.ID, domain.RentalActionAccept, "owner", "")
	require.NoError(t, err)
	h.clock.Set(start.Add(-time.Hour))
	_, err = h.rentals.TransitionRental(h.ctx, kept.ID, domain.RentalActionConfirmPickup, "renter", accepted.PickupToken)
	require.NoError(t, err)

	h.clock.Set(start.Add(time.Minute))
	assert.Equal(t, 1, h.runner.cancelNoShowRentals(h.ctx).Applied)
	assert.Zero(t, h.runner.settleUnreturnedRentals(h.ctx).Applied)

	h.clock.Set(start.Add(48*time.Hour + 3*24*time.Hour + time.Minute))
	assert.Equal(t, 1, h.runner.settleUnreturnedRentals(h.ctx).Applied)

	got, err := h.rentals.GetRental(h.ctx, domain.Actor{UserID: "renter"}, kept.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndReason)
	assert.Equal(t, domain.EndReasonNeverReturned, *got.EndReason)
}

func TestPaymentSweeps(t *testing.T) {
	h := newHarness(t, 100)
	topUp, err := h.payments.CreateTopUp(h.ctx, "renter", 50, domain.TopUpMethodStripe, "pi_1")
	require.NoError(t, err)
	w, err := h.payments.RequestWithdrawal(h.ctx, "renter", 300, domain.WithdrawalMethodBank, domain.WithdrawalDestination{
		IBAN: "DE89370400440532013000", BankName: "Example Bank", AccountHolderName: "Renter",
	})
	require.NoError(t, err)

	h.clock.Set(baseTime.Add(25 * time.Hour))
	assert.Equal(t, 1, h.runner.expireTopUps(h.ctx).Applied)
	assert.Equal(t, 1, h.runner.expireWithdrawals(h.ctx).Applied)

	_, err = h.payments.ConfirmPendingTopUp(h.ctx, topUp.EntryID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	_, err = h.payments.ApproveWithdrawal(h.ctx, domain.Actor{UserID: "admin", Role: domain.UserRoleAdmin}, w.ID)
	assert.ErrorIs(t, err, domain.ErrWindowExpired)

	user, holding := h.renterBalances(t)
	assert.Equal(t, int64(10_000), user)
	assert.Equal(t, int64(0), holding)
}

func TestRun(t *testing.T) {
	h := newHarness(t, 100)
	assert.Len(t, h.runner.Names(), 5)
	assert.NoError(t, h.runner.Run(JobAll))
	assert.NoError(t, h.runner.Run(JobExpireTopUps))
	assert.Error(t, h.runner.Run("nightly"))
}
