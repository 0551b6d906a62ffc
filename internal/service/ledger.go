package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

// ledgerOps holds the wallet primitives that run inside a caller's atomic
// unit. Every balance change goes through move, which locks the wallets
// involved in id order so concurrent units cannot deadlock on each other.
type ledgerOps struct {
	now Clock
}

func (l *ledgerOps) transfer(ctx context.Context, tx repository.Tx, from, to *string, amount int64, purpose domain.EntryPurpose, correlationID string) (*domain.LedgerEntry, error) {
	if err := validateMovement(from, to, amount); err != nil {
		return nil, err
	}
	if err := l.move(ctx, tx, from, to, amount); err != nil {
		return nil, err
	}

	now := l.now()
	entry := &domain.LedgerEntry{
		ID:            uuid.NewString(),
		FromWalletID:  from,
		ToWalletID:    to,
		Amount:        amount,
		Purpose:       purpose,
		Status:        domain.EntryStatusConfirmed,
		CorrelationID: correlationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Ledger().Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// recordPending writes an entry with no balance effect. The effect is applied
// when the entry is confirmed.
func (l *ledgerOps) recordPending(ctx context.Context, tx repository.Tx, from, to *string, amount int64, purpose domain.EntryPurpose, correlationID string, expiresAt time.Time) (*domain.LedgerEntry, error) {
	if err := validateMovement(from, to, amount); err != nil {
		return nil, err
	}
	for _, id := range []*string{from, to} {
		if id == nil {
			continue
		}
		if _, err := tx.Wallets().GetByID(ctx, *id); err != nil {
			return nil, err
		}
	}

	now := l.now()
	entry := &domain.LedgerEntry{
		ID:            uuid.NewString(),
		FromWalletID:  from,
		ToWalletID:    to,
		Amount:        amount,
		Purpose:       purpose,
		Status:        domain.EntryStatusPending,
		CorrelationID: correlationID,
		ExpiresAt:     &expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Ledger().Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *ledgerOps) confirmPending(ctx context.Context, tx repository.Tx, entryID string) (*domain.LedgerEntry, error) {
	entry, err := tx.Ledger().GetForUpdate(ctx, entryID)
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case domain.EntryStatusConfirmed:
		return entry, nil
	case domain.EntryStatusFailed:
		return nil, domain.Errorf(domain.CodeAlreadyProcessed, "ledger entry %s already failed", entryID)
	}

	if err := l.move(ctx, tx, entry.FromWalletID, entry.ToWalletID, entry.Amount); err != nil {
		return nil, err
	}
	if err := tx.Ledger().UpdateStatus(ctx, entry.ID, domain.EntryStatusConfirmed); err != nil {
		return nil, err
	}
	entry.Status = domain.EntryStatusConfirmed
	entry.UpdatedAt = l.now()
	return entry, nil
}

// failPending is a no-op for an entry that is already final.
func (l *ledgerOps) failPending(ctx context.Context, tx repository.Tx, entryID string) (*domain.LedgerEntry, error) {
	entry, err := tx.Ledger().GetForUpdate(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsFinal() {
		return entry, nil
	}
	if err := tx.Ledger().UpdateStatus(ctx, entry.ID, domain.EntryStatusFailed); err != nil {
		return nil, err
	}
	entry.Status = domain.EntryStatusFailed
	entry.UpdatedAt = l.now()
	return entry, nil
}

func (l *ledgerOps) move(ctx context.Context, tx repository.Tx, from, to *string, amount int64) error {
	wallets := make(map[string]*domain.Wallet, 2)
	for _, id := range lockOrder(from, to) {
		w, err := tx.Wallets().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wallets[id] = w
	}

	if from != nil {
		src := wallets[*from]
		if src.Balance < amount {
			return domain.Errorf(domain.CodeInsufficientFunds, "wallet %s holds %d, %d required", src.ID, src.Balance, amount)
		}
		if err := tx.Wallets().UpdateBalance(ctx, src.ID, src.Balance-amount); err != nil {
			return err
		}
	}
	if to != nil {
		dst := wallets[*to]
		if err := tx.Wallets().UpdateBalance(ctx, dst.ID, dst.Balance+amount); err != nil {
			return err
		}
	}
	return nil
}

func (l *ledgerOps) resolveWallets(ctx context.Context, tx repository.Tx, userID string) (*domain.WalletPair, error) {
	pair := &domain.WalletPair{}
	for _, kind := range []domain.WalletKind{domain.WalletKindUser, domain.WalletKindHolding} {
		w, err := tx.Wallets().GetByUserAndKind(ctx, userID, kind)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Errorf(domain.CodeWalletMissing, "user %s has no %s wallet", userID, kind)
		}
		if err != nil {
			return nil, err
		}
		if kind == domain.WalletKindUser {
			pair.User = w
		} else {
			pair.Holding = w
		}
	}
	return pair, nil
}

func (l *ledgerOps) ensureUserWallets(ctx context.Context, tx repository.Tx, userID string) (*domain.WalletPair, error) {
	pair := &domain.WalletPair{}
	for _, kind := range []domain.WalletKind{domain.WalletKindUser, domain.WalletKindHolding} {
		w, err := tx.Wallets().GetByUserAndKind(ctx, userID, kind)
		if errors.Is(err, domain.ErrNotFound) {
			w, err = l.createWallet(ctx, tx, &userID, kind)
		}
		if err != nil {
			return nil, err
		}
		if kind == domain.WalletKindUser {
			pair.User = w
		} else {
			pair.Holding = w
		}
	}
	return pair, nil
}

func (l *ledgerOps) ensureAdminWallet(ctx context.Context, tx repository.Tx) (*domain.Wallet, error) {
	w, err := tx.Wallets().GetAdmin(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return l.createWallet(ctx, tx, nil, domain.WalletKindAdmin)
	}
	return w, err
}

func (l *ledgerOps) adminWallet(ctx context.Context, tx repository.Tx) (*domain.Wallet, error) {
	w, err := tx.Wallets().GetAdmin(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Errorf(domain.CodeWalletMissing, "platform ADMIN wallet is not provisioned")
	}
	return w, err
}

func (l *ledgerOps) createWallet(ctx context.Context, tx repository.Tx, userID *string, kind domain.WalletKind) (*domain.Wallet, error) {
	now := l.now()
	w := &domain.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Wallets().Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func validateMovement(from, to *string, amount int64) error {
	if amount <= 0 {
		return domain.Errorf(domain.CodeInvalidArgument, "amount must be positive, got %d", amount)
	}
	if from == nil && to == nil {
		return domain.Errorf(domain.CodeInvalidArgument, "a ledger entry needs a source or a destination wallet")
	}
	if from != nil && to != nil && *from == *to {
		return domain.Errorf(domain.CodeInvalidArgument, "source and destination wallet are the same")
	}
	return nil
}

func lockOrder(ids ...*string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	sort.Strings(out)
	return out
}

type ledgerService struct {
	store repository.Store
	ops   *ledgerOps
}

func NewLedgerService(store repository.Store, opts ...Option) LedgerService {
	o := buildOptions(opts)
	return &ledgerService{store: store, ops: &ledgerOps{now: o.now}}
}

func (s *ledgerService) Transfer(ctx context.Context, from, to *string, amount int64, purpose domain.EntryPurpose, correlationID string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		entry, err = s.ops.transfer(ctx, tx, from, to, amount, purpose, correlationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Ledger transfer committed", "entry_id", entry.ID, "purpose", purpose, "amount", amount, "correlation_id", correlationID)
	return entry, nil
}

func (s *ledgerService) RecordPending(ctx context.Context, from, to *string, amount int64, purpose domain.EntryPurpose, correlationID string, expiresAt time.Time) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		entry, err = s.ops.recordPending(ctx, tx, from, to, amount, purpose, correlationID, expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) ConfirmPending(ctx context.Context, entryID string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		entry, err = s.ops.confirmPending(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) FailPending(ctx context.Context, entryID string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		entry, err = s.ops.failPending(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) ResolveWallets(ctx context.Context, userID string) (*domain.WalletPair, error) {
	var pair *domain.WalletPair
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		pair, err = s.ops.resolveWallets(ctx, tx, userID)
		return err
	})
	return pair, err
}

func (s *ledgerService) EnsureAdminWallet(ctx context.Context) (*domain.Wallet, error) {
	var w *domain.Wallet
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		w, err = s.ops.ensureAdminWallet(ctx, tx)
		return err
	})
	return w, err
}

func (s *ledgerService) ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		wallets, err = tx.Wallets().ListByUser(ctx, userID)
		return err
	})
	return wallets, err
}

// ListEntries returns the entries touching any of the user's wallets, newest first.
func (s *ledgerService) ListEntries(ctx context.Context, userID string, page, pageSize int32) ([]domain.LedgerEntry, int32, error) {
	var (
		entries []domain.LedgerEntry
		total   int32
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallets, err := tx.Wallets().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			return domain.Errorf(domain.CodeWalletMissing, "user %s has no wallets", userID)
		}
		ids := make([]string, len(wallets))
		for i, w := range wallets {
			ids[i] = w.ID
		}
		entries, total, err = tx.Ledger().ListByWallets(ctx, ids, page, pageSize)
		return err
	})
	return entries, total, err
}
