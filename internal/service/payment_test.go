package service_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/domain"
	"rently-backend/internal/repository"
)

func (f *fixture) topUp(t *testing.T, entryID string) domain.TopUp {
	t.Helper()
	var got domain.TopUp
	err := f.store.Atomic(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		topUp, err := tx.TopUps().GetByEntryIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		got = *topUp
		return nil
	})
	require.NoError(t, err)
	return got
}

var bankDestination = domain.WithdrawalDestination{
	IBAN:              "DE89370400440532013000",
	BankName:          "Example Bank",
	AccountHolderName: "Renter",
}

var exchangeDestination = domain.WithdrawalDestination{
	PickupName:     "Renter",
	PickupPhone:    "+10000000000",
	PickupIDNumber: "X1234567",
}

func TestCreateTopUp(t *testing.T) {
	f := newFixture(t)

	t.Run("Confirming twice credits once", func(t *testing.T) {
		topUp, err := f.payments.CreateTopUp(f.ctx, renterID, 200, domain.TopUpMethodStripe, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, domain.TopUpStatusPending, topUp.Status)
		assert.Equal(t, baseTime.Add(15*time.Minute), topUp.ExpiresAt)

		user, _ := f.balances(t, renterID)
		assert.Equal(t, int64(0), user)

		for i := 0; i < 2; i++ {
			entry, err := f.payments.ConfirmPendingTopUp(f.ctx, topUp.EntryID)
			require.NoError(t, err)
			assert.Equal(t, domain.EntryStatusConfirmed, entry.Status)
		}
		user, _ = f.balances(t, renterID)
		assert.Equal(t, int64(200), user)
		assert.Equal(t, domain.TopUpStatusConfirmed, f.topUp(t, topUp.EntryID).Status)

		f.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
			return n.UserID == renterID && n.Type == domain.NotificationTopUp
		}))
	})

	t.Run("Failed top-up cannot be confirmed", func(t *testing.T) {
		topUp, err := f.payments.CreateTopUp(f.ctx, renterID, 70, domain.TopUpMethodBillPay, "bill-9")
		require.NoError(t, err)
		assert.Equal(t, baseTime.Add(24*time.Hour), topUp.ExpiresAt)

		entry, err := f.payments.FailPendingTopUp(f.ctx, topUp.EntryID)
		require.NoError(t, err)
		assert.Equal(t, domain.EntryStatusFailed, entry.Status)
		assert.Equal(t, domain.TopUpStatusFailed, f.topUp(t, topUp.EntryID).Status)

		_, err = f.payments.ConfirmPendingTopUp(f.ctx, topUp.EntryID)
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

		user, _ := f.balances(t, renterID)
		assert.Equal(t, int64(200), user)
	})

	t.Run("Rejects bad input", func(t *testing.T) {
		_, err := f.payments.CreateTopUp(f.ctx, renterID, 0, domain.TopUpMethodStripe, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = f.payments.CreateTopUp(f.ctx, renterID, 10, "cash", "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = f.payments.CreateTopUp(f.ctx, "stranger", 10, domain.TopUpMethodStripe, "")
		assert.ErrorIs(t, err, domain.ErrWalletMissing)
	})

	t.Run("Unknown entry", func(t *testing.T) {
		_, err := f.payments.ConfirmPendingTopUp(f.ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestExpireTopUp(t *testing.T) {
	f := newFixture(t)
	stripe, err := f.payments.CreateTopUp(f.ctx, renterID, 50, domain.TopUpMethodStripe, "pi_1")
	require.NoError(t, err)
	billpay, err := f.payments.CreateTopUp(f.ctx, renterID, 80, domain.TopUpMethodBillPay, "bill-1")
	require.NoError(t, err)

	due, err := f.payments.DueTopUps(f.ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, due)

	f.clock.Set(baseTime.Add(16 * time.Minute))
	due, err = f.payments.DueTopUps(f.ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{stripe.EntryID}, due)

	applied, err := f.payments.ExpireTopUp(f.ctx, stripe.EntryID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.TopUpStatusExpired, f.topUp(t, stripe.EntryID).Status)

	applied, err = f.payments.ExpireTopUp(f.ctx, stripe.EntryID)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = f.payments.ConfirmPendingTopUp(f.ctx, stripe.EntryID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	// Not yet due.
	applied, err = f.payments.ExpireTopUp(f.ctx, billpay.EntryID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.TopUpStatusPending, f.topUp(t, billpay.EntryID).Status)

	user, _ := f.balances(t, renterID)
	assert.Equal(t, int64(0), user)
}

func TestConfirmPendingTopUp_AfterExpiry(t *testing.T) {
	f := newFixture(t)
	stripe, err := f.payments.CreateTopUp(f.ctx, renterID, 50, domain.TopUpMethodStripe, "pi_late")
	require.NoError(t, err)
	billpay, err := f.payments.CreateTopUp(f.ctx, renterID, 80, domain.TopUpMethodBillPay, "bill-late")
	require.NoError(t, err)

	// Both are past expiry and the sweep has not run.
	f.clock.Set(baseTime.Add(26 * time.Hour))

	t.Run("Bill-pay is expired instead of credited", func(t *testing.T) {
		_, err := f.payments.ConfirmPendingTopUp(f.ctx, billpay.EntryID)
		assert.ErrorIs(t, err, domain.ErrWindowExpired)
		assert.Equal(t, domain.TopUpStatusExpired, f.topUp(t, billpay.EntryID).Status)

		_, err = f.payments.ConfirmPendingTopUp(f.ctx, billpay.EntryID)
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

		user, _ := f.balances(t, renterID)
		assert.Equal(t, int64(0), user)
	})

	t.Run("Late card capture is honoured", func(t *testing.T) {
		entry, err := f.payments.ConfirmPendingTopUp(f.ctx, stripe.EntryID)
		require.NoError(t, err)
		assert.Equal(t, domain.EntryStatusConfirmed, entry.Status)

		user, _ := f.balances(t, renterID)
		assert.Equal(t, int64(50), user)
	})
}

func TestWithdrawals(t *testing.T) {
	t.Run("Approved bank withdrawal pays out the hold", func(t *testing.T) {
		f := newFixture(t)
		f.fund(t, renterID, 300)

		w, err := f.payments.RequestWithdrawal(f.ctx, renterID, 120, domain.WithdrawalMethodBank, bankDestination)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
		assert.Empty(t, w.ReferenceNumber)
		assert.Equal(t, baseTime.Add(24*time.Hour), w.ExpiresAt)

		user, holding := f.balances(t, renterID)
		assert.Equal(t, int64(180), user)
		assert.Equal(t, int64(120), holding)

		approved, err := f.payments.ApproveWithdrawal(f.ctx, f.admin, w.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusApproved, approved.Status)
		require.NotNil(t, approved.ProcessedBy)
		assert.Equal(t, adminID, *approved.ProcessedBy)

		user, holding = f.balances(t, renterID)
		assert.Equal(t, int64(180), user)
		assert.Equal(t, int64(0), holding)
		assert.Equal(t, map[domain.EntryPurpose]int64{
			domain.PurposeWithdrawalHold:       120,
			domain.PurposeWithdrawalPayoutBank: 120,
		}, purposes(f.entriesFor(t, w.ID)))

		_, err = f.payments.RejectWithdrawal(f.ctx, f.admin, w.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	})

	t.Run("Rejected exchange withdrawal returns the hold", func(t *testing.T) {
		f := newFixture(t)
		f.fund(t, renterID, 300)

		w, err := f.payments.RequestWithdrawal(f.ctx, renterID, 100, domain.WithdrawalMethodExchange, exchangeDestination)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{10}$`), w.ReferenceNumber)
		assert.Equal(t, baseTime.Add(48*time.Hour), w.ExpiresAt)

		rejected, err := f.payments.RejectWithdrawal(f.ctx, f.admin, w.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusRejected, rejected.Status)

		user, holding := f.balances(t, renterID)
		assert.Equal(t, int64(300), user)
		assert.Equal(t, int64(0), holding)
		assert.Equal(t, int64(100), purposes(f.entriesFor(t, w.ID))[domain.PurposeWithdrawalRejectReturn])
	})

	t.Run("Expired withdrawal cannot be approved", func(t *testing.T) {
		f := newFixture(t)
		f.fund(t, renterID, 300)
		w, err := f.payments.RequestWithdrawal(f.ctx, renterID, 100, domain.WithdrawalMethodBank, bankDestination)
		require.NoError(t, err)

		f.clock.Set(baseTime.Add(25 * time.Hour))
		_, err = f.payments.ApproveWithdrawal(f.ctx, f.admin, w.ID)
		assert.ErrorIs(t, err, domain.ErrWindowExpired)

		due, err := f.payments.DueWithdrawals(f.ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, []string{w.ID}, due)

		for i, want := range []bool{true, false} {
			applied, err := f.payments.ExpireWithdrawal(f.ctx, w.ID)
			require.NoError(t, err)
			assert.Equal(t, want, applied, "attempt %d", i)
		}

		user, holding := f.balances(t, renterID)
		assert.Equal(t, int64(300), user)
		assert.Equal(t, int64(0), holding)

		_, err = f.payments.RejectWithdrawal(f.ctx, f.admin, w.ID)
		assert.ErrorIs(t, err, domain.ErrWindowExpired)
	})

	t.Run("Guards", func(t *testing.T) {
		f := newFixture(t)
		f.fund(t, renterID, 50)

		_, err := f.payments.RequestWithdrawal(f.ctx, renterID, 80, domain.WithdrawalMethodBank, bankDestination)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		_, err = f.payments.RequestWithdrawal(f.ctx, renterID, 10, domain.WithdrawalMethodBank, domain.WithdrawalDestination{IBAN: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = f.payments.RequestWithdrawal(f.ctx, renterID, 10, domain.WithdrawalMethodExchange, bankDestination)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = f.payments.RequestWithdrawal(f.ctx, renterID, -1, domain.WithdrawalMethodBank, bankDestination)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		w, err := f.payments.RequestWithdrawal(f.ctx, renterID, 10, domain.WithdrawalMethodBank, bankDestination)
		require.NoError(t, err)
		_, err = f.payments.ApproveWithdrawal(f.ctx, domain.Actor{UserID: renterID, Role: domain.UserRoleUser}, w.ID)
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)

		_, err = f.payments.ApproveWithdrawal(f.ctx, f.admin, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
