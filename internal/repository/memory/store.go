// Package memory keeps all repositories in process. Atomic units are
// serialized by a mutex and run against a copy of the state that replaces the
// live state only when the unit succeeds.
package memory

import (
	"context"
	"sync"

	"rently-backend/internal/domain"
	"rently-backend/internal/repository"
)

type state struct {
	users        map[string]domain.User
	wallets      map[string]domain.Wallet
	entries      map[string]domain.LedgerEntry
	rentals      map[string]domain.RentalRequest
	issueReports map[string]domain.IssueReport
	topUps       map[string]domain.TopUp
	withdrawals  map[string]domain.Withdrawal
}

func newState() *state {
	return &state{
		users:        map[string]domain.User{},
		wallets:      map[string]domain.Wallet{},
		entries:      map[string]domain.LedgerEntry{},
		rentals:      map[string]domain.RentalRequest{},
		issueReports: map[string]domain.IssueReport{},
		topUps:       map[string]domain.TopUp{},
		withdrawals:  map[string]domain.Withdrawal{},
	}
}

func (s *state) clone() *state {
	return &state{
		users:        cloneMap(s.users),
		wallets:      cloneMap(s.wallets),
		entries:      cloneMap(s.entries),
		rentals:      cloneMap(s.rentals),
		issueReports: cloneMap(s.issueReports),
		topUps:       cloneMap(s.topUps),
		withdrawals:  cloneMap(s.withdrawals),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(ctx, &tx{st: working}); err != nil {
		return err
	}
	s.st = working
	return nil
}

type tx struct {
	st *state
}

func (t *tx) Users() repository.UserRepository               { return userRepository{t.st} }
func (t *tx) Wallets() repository.WalletRepository           { return walletRepository{t.st} }
func (t *tx) Ledger() repository.LedgerRepository            { return ledgerRepository{t.st} }
func (t *tx) Rentals() repository.RentalRepository           { return rentalRepository{t.st} }
func (t *tx) IssueReports() repository.IssueReportRepository { return issueReportRepository{t.st} }
func (t *tx) TopUps() repository.TopUpRepository             { return topUpRepository{t.st} }
func (t *tx) Withdrawals() repository.WithdrawalRepository   { return withdrawalRepository{t.st} }

func notFound(kind, id string) error {
	return domain.Errorf(domain.CodeNotFound, "%s %s not found", kind, id)
}

func paginate[T any](items []T, page, pageSize int32) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := int((page - 1) * pageSize)
	if start >= len(items) {
		return nil
	}
	end := start + int(pageSize)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
