package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

// PaymentPolicy sets how long top-ups and withdrawals stay pending.
type PaymentPolicy struct {
	StripeTopUpExpiry        time.Duration
	BillPayTopUpExpiry       time.Duration
	BankWithdrawalExpiry     time.Duration
	ExchangeWithdrawalExpiry time.Duration
}

func DefaultPaymentPolicy() PaymentPolicy {
	return PaymentPolicy{
		StripeTopUpExpiry:        15 * time.Minute,
		BillPayTopUpExpiry:       24 * time.Hour,
		BankWithdrawalExpiry:     24 * time.Hour,
		ExchangeWithdrawalExpiry: 48 * time.Hour,
	}
}

type paymentService struct {
	store    repository.Store
	ledger   *ledgerOps
	policy   PaymentPolicy
	notifier Notifier
	now      Clock
}

func NewPaymentService(store repository.Store, policy PaymentPolicy, opts ...Option) PaymentService {
	o := buildOptions(opts)
	return &paymentService{
		store:    store,
		ledger:   &ledgerOps{now: o.now},
		policy:   policy,
		notifier: o.notifier,
		now:      o.now,
	}
}

// CreateTopUp records a pending deposit into the user's USER wallet. The
// balance changes only once the provider confirms the entry.
func (s *paymentService) CreateTopUp(ctx context.Context, userID string, amount int64, method domain.TopUpMethod, reference string) (*domain.TopUp, error) {
	logger.EnterMethod("paymentService.CreateTopUp", "userID", userID, "amount", amount, "method", method)

	if amount <= 0 {
		return nil, domain.Errorf(domain.CodeInvalidArgument, "top-up amount must be positive")
	}
	var (
		purpose domain.EntryPurpose
		expiry  time.Duration
	)
	switch method {
	case domain.TopUpMethodStripe:
		purpose, expiry = domain.PurposeTopUpStripe, s.policy.StripeTopUpExpiry
	case domain.TopUpMethodBillPay:
		purpose, expiry = domain.PurposeTopUpBillPay, s.policy.BillPayTopUpExpiry
	default:
		return nil, domain.Errorf(domain.CodeInvalidArgument, "unknown top-up method %q", method)
	}

	var topUp *domain.TopUp
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallets, err := s.ledger.resolveWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		id := uuid.NewString()
		entry, err := s.ledger.recordPending(ctx, tx, nil, &wallets.User.ID, amount, purpose, id, now.Add(expiry))
		if err != nil {
			return err
		}
		topUp = &domain.TopUp{
			ID:        id,
			UserID:    userID,
			EntryID:   entry.ID,
			Amount:    amount,
			Method:    method,
			Reference: reference,
			Status:    domain.TopUpStatusPending,
			ExpiresAt: now.Add(expiry),
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.TopUps().Create(ctx, topUp)
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreateTopUp", err, "userID", userID)
		return nil, err
	}
	logger.ExitMethod("paymentService.CreateTopUp", "topUpID", topUp.ID, "entryID", topUp.EntryID)
	return topUp, nil
}

// ConfirmPendingTopUp applies a provider confirmation. Confirming twice is a no-op.
// A bill-pay top-up confirmed after its expiry is expired instead; card
// captures are honoured late.
func (s *paymentService) ConfirmPendingTopUp(ctx context.Context, entryID string) (*domain.LedgerEntry, error) {
	logger.EnterMethod("paymentService.ConfirmPendingTopUp", "entryID", entryID)

	var (
		entry     *domain.LedgerEntry
		topUp     *domain.TopUp
		confirmed bool
		expired   bool
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		confirmed, expired = false, false
		var err error
		topUp, err = tx.TopUps().GetByEntryIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		now := s.now()
		if topUp.Status == domain.TopUpStatusPending && topUp.Method == domain.TopUpMethodBillPay && !topUp.ExpiresAt.After(now) {
			if _, err := s.ledger.failPending(ctx, tx, entryID); err != nil {
				return err
			}
			topUp.Status = domain.TopUpStatusExpired
			topUp.UpdatedAt = now
			expired = true
			return tx.TopUps().Update(ctx, topUp)
		}
		entry, err = s.ledger.confirmPending(ctx, tx, entryID)
		if err != nil {
			return err
		}
		confirmed = topUp.Status == domain.TopUpStatusPending
		if !confirmed {
			return nil
		}
		topUp.Status = domain.TopUpStatusConfirmed
		topUp.UpdatedAt = s.now()
		return tx.TopUps().Update(ctx, topUp)
	})
	if err == nil && expired {
		logger.Info("Top-up expired", "top_up_id", topUp.ID, "entry_id", entryID)
		err = domain.Errorf(domain.CodeWindowExpired, "top-up %s expired at %s", topUp.ID, topUp.ExpiresAt.Format(time.RFC3339))
	}
	if err != nil {
		logger.ExitMethodWithError("paymentService.ConfirmPendingTopUp", err, "entryID", entryID)
		return nil, err
	}

	if confirmed {
		logger.Info("Top-up confirmed", "top_up_id", topUp.ID, "entry_id", entryID, "amount", topUp.Amount)
		s.notifier.Notify(ctx, domain.Notification{
			UserID:     topUp.UserID,
			Type:       domain.NotificationTopUp,
			Title:      "Top-up received",
			Message:    fmt.Sprintf("%d was added to your wallet.", topUp.Amount),
			Attributes: map[string]string{"top_up_id": topUp.ID, "status": string(topUp.Status)},
		})
	}
	logger.ExitMethod("paymentService.ConfirmPendingTopUp", "entryID", entryID, "status", entry.Status)
	return entry, nil
}

// FailPendingTopUp marks a top-up the provider declined. Failing an entry that
// is already final is a no-op.
func (s *paymentService) FailPendingTopUp(ctx context.Context, entryID string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		topUp, err := tx.TopUps().GetByEntryIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		entry, err = s.ledger.failPending(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if topUp.Status != domain.TopUpStatusPending || entry.Status != domain.EntryStatusFailed {
			return nil
		}
		topUp.Status = domain.TopUpStatusFailed
		topUp.UpdatedAt = s.now()
		return tx.TopUps().Update(ctx, topUp)
	})
	if err != nil {
		logger.Error("Failed to fail top-up entry", "entry_id", entryID, "error", err)
		return nil, err
	}
	return entry, nil
}

// RequestWithdrawal moves the amount from the USER wallet to the HOLDING
// wallet until an admin pays it out or rejects it.
func (s *paymentService) RequestWithdrawal(ctx context.Context, userID string, amount int64, method domain.WithdrawalMethod, dest domain.WithdrawalDestination) (*domain.Withdrawal, error) {
	logger.EnterMethod("paymentService.RequestWithdrawal", "userID", userID, "amount", amount, "method", method)

	if amount <= 0 {
		return nil, domain.Errorf(domain.CodeInvalidArgument, "withdrawal amount must be positive")
	}
	expiry, err := s.validateDestination(method, dest)
	if err != nil {
		return nil, err
	}

	var withdrawal *domain.Withdrawal
	err = s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallets, err := s.ledger.resolveWallets(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		id := uuid.NewString()
		hold, err := s.ledger.transfer(ctx, tx, &wallets.User.ID, &wallets.Holding.ID, amount, domain.PurposeWithdrawalHold, id)
		if err != nil {
			return err
		}
		withdrawal = &domain.Withdrawal{
			ID:          id,
			UserID:      userID,
			Amount:      amount,
			Method:      method,
			Destination: dest,
			Status:      domain.WithdrawalStatusPending,
			HoldEntryID: hold.ID,
			ExpiresAt:   now.Add(expiry),
			CreatedAt:   now,
		}
		if method == domain.WithdrawalMethodExchange {
			withdrawal.ReferenceNumber = referenceNumber()
		}
		return tx.Withdrawals().Create(ctx, withdrawal)
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.RequestWithdrawal", err, "userID", userID)
		return nil, err
	}
	logger.ExitMethod("paymentService.RequestWithdrawal", "withdrawalID", withdrawal.ID)
	return withdrawal, nil
}

func (s *paymentService) validateDestination(method domain.WithdrawalMethod, dest domain.WithdrawalDestination) (time.Duration, error) {
	switch method {
	case domain.WithdrawalMethodBank:
		if dest.IBAN == "" || dest.BankName == "" || dest.AccountHolderName == "" {
			return 0, domain.Errorf(domain.CodeInvalidArgument, "bank withdrawals need iban, bank name and account holder name")
		}
		return s.policy.BankWithdrawalExpiry, nil
	case domain.WithdrawalMethodExchange:
		if dest.PickupName == "" || dest.PickupPhone == "" || dest.PickupIDNumber == "" {
			return 0, domain.Errorf(domain.CodeInvalidArgument, "exchange withdrawals need pickup name, phone and id number")
		}
		return s.policy.ExchangeWithdrawalExpiry, nil
	}
	return 0, domain.Errorf(domain.CodeInvalidArgument, "unknown withdrawal method %q", method)
}

// referenceNumber returns the 10 digit code a recipient quotes at the exchange office.
func referenceNumber() string {
	id := uuid.New()
	return fmt.Sprintf("%010d", binary.BigEndian.Uint64(id[:8])%10_000_000_000)
}

func (s *paymentService) ApproveWithdrawal(ctx context.Context, actor domain.Actor, withdrawalID string) (*domain.Withdrawal, error) {
	return s.decideWithdrawal(ctx, actor, withdrawalID, true)
}

func (s *paymentService) RejectWithdrawal(ctx context.Context, actor domain.Actor, withdrawalID string) (*domain.Withdrawal, error) {
	return s.decideWithdrawal(ctx, actor, withdrawalID, false)
}

func (s *paymentService) decideWithdrawal(ctx context.Context, actor domain.Actor, withdrawalID string, approve bool) (*domain.Withdrawal, error) {
	logger.EnterMethod("paymentService.decideWithdrawal", "withdrawalID", withdrawalID, "approve", approve, "actorID", actor.UserID)

	if !actor.IsTrusted() {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only an admin can process withdrawals")
	}

	var withdrawal *domain.Withdrawal
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		withdrawal, err = tx.Withdrawals().GetForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		now := s.now()
		switch {
		case withdrawal.Status == domain.WithdrawalStatusExpired:
			return domain.Errorf(domain.CodeWindowExpired, "withdrawal %s expired", withdrawal.ID)
		case withdrawal.Status != domain.WithdrawalStatusPending:
			return domain.Errorf(domain.CodeAlreadyProcessed, "withdrawal %s is already %s", withdrawal.ID, withdrawal.Status)
		case withdrawal.ExpiresAt.Before(now):
			return domain.Errorf(domain.CodeWindowExpired, "withdrawal %s expired at %s", withdrawal.ID, withdrawal.ExpiresAt.Format(time.RFC3339))
		}

		wallets, err := s.ledger.resolveWallets(ctx, tx, withdrawal.UserID)
		if err != nil {
			return err
		}
		if approve {
			purpose := domain.PurposeWithdrawalPayoutBank
			if withdrawal.Method == domain.WithdrawalMethodExchange {
				purpose = domain.PurposeWithdrawalPayoutExchange
			}
			if _, err := s.ledger.transfer(ctx, tx, &wallets.Holding.ID, nil, withdrawal.Amount, purpose, withdrawal.ID); err != nil {
				return err
			}
			withdrawal.Status = domain.WithdrawalStatusApproved
		} else {
			if _, err := s.ledger.transfer(ctx, tx, &wallets.Holding.ID, &wallets.User.ID, withdrawal.Amount, domain.PurposeWithdrawalRejectReturn, withdrawal.ID); err != nil {
				return err
			}
			withdrawal.Status = domain.WithdrawalStatusRejected
		}
		processedBy := actor.UserID
		withdrawal.ProcessedBy = &processedBy
		withdrawal.ProcessedAt = &now
		return tx.Withdrawals().Update(ctx, withdrawal)
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.decideWithdrawal", err, "withdrawalID", withdrawalID)
		return nil, err
	}

	s.notifier.Notify(ctx, withdrawalNotification(withdrawal))
	logger.ExitMethod("paymentService.decideWithdrawal", "withdrawalID", withdrawalID, "status", withdrawal.Status)
	return withdrawal, nil
}

func (s *paymentService) DueTopUps(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ids, err = tx.TopUps().ListExpiredPending(ctx, s.now(), limit)
		return err
	})
	return ids, err
}

func (s *paymentService) DueWithdrawals(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ids, err = tx.Withdrawals().ListExpiredPending(ctx, s.now(), limit)
		return err
	})
	return ids, err
}

// ExpireTopUp fails the pending entry of a top-up the provider never confirmed.
func (s *paymentService) ExpireTopUp(ctx context.Context, entryID string) (bool, error) {
	var applied bool
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		applied = false
		topUp, err := tx.TopUps().GetByEntryIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		now := s.now()
		if topUp.Status != domain.TopUpStatusPending || !topUp.ExpiresAt.Before(now) {
			return nil
		}
		entry, err := s.ledger.failPending(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != domain.EntryStatusFailed {
			return nil
		}
		topUp.Status = domain.TopUpStatusExpired
		topUp.UpdatedAt = now
		applied = true
		return tx.TopUps().Update(ctx, topUp)
	})
	if err != nil {
		return false, err
	}
	if applied {
		logger.Info("Top-up expired", "entry_id", entryID)
	}
	return applied, nil
}

// ExpireWithdrawal returns held funds of a withdrawal nobody processed in time.
func (s *paymentService) ExpireWithdrawal(ctx context.Context, withdrawalID string) (bool, error) {
	var (
		applied    bool
		withdrawal *domain.Withdrawal
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		applied = false
		var err error
		withdrawal, err = tx.Withdrawals().GetForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		now := s.now()
		if withdrawal.Status != domain.WithdrawalStatusPending || !withdrawal.ExpiresAt.Before(now) {
			return nil
		}
		wallets, err := s.ledger.resolveWallets(ctx, tx, withdrawal.UserID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.transfer(ctx, tx, &wallets.Holding.ID, &wallets.User.ID, withdrawal.Amount, domain.PurposeWithdrawalExpiredReturn, withdrawal.ID); err != nil {
			return err
		}
		withdrawal.Status = domain.WithdrawalStatusExpired
		withdrawal.ProcessedAt = &now
		applied = true
		return tx.Withdrawals().Update(ctx, withdrawal)
	})
	if err != nil || !applied {
		return false, err
	}
	logger.Info("Withdrawal expired, funds returned", "withdrawal_id", withdrawalID, "amount", withdrawal.Amount)
	s.notifier.Notify(ctx, withdrawalNotification(withdrawal))
	return true, nil
}

func withdrawalNotification(w *domain.Withdrawal) domain.Notification {
	var title, message string
	switch w.Status {
	case domain.WithdrawalStatusApproved:
		title, message = "Withdrawal paid out", fmt.Sprintf("Your withdrawal of %d was paid out.", w.Amount)
	case domain.WithdrawalStatusRejected:
		title, message = "Withdrawal rejected", fmt.Sprintf("Your withdrawal of %d was rejected and returned to your wallet.", w.Amount)
	default:
		title, message = "Withdrawal expired", fmt.Sprintf("Your withdrawal of %d expired and was returned to your wallet.", w.Amount)
	}
	return domain.Notification{
		UserID:     w.UserID,
		Type:       domain.NotificationWithdrawal,
		Title:      title,
		Message:    message,
		Attributes: map[string]string{"withdrawal_id": w.ID, "status": string(w.Status)},
	}
}
