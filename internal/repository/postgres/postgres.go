package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

const defaultMaxAttempts = 5

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store runs every atomic unit in a SERIALIZABLE transaction and retries it
// when postgres reports a serialization failure or a deadlock.
type Store struct {
	db          *sql.DB
	maxAttempts int
	backoff     time.Duration
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		maxAttempts: defaultMaxAttempts,
		backoff:     20 * time.Millisecond,
	}
}

// WithRetry overrides the attempt budget and the base backoff.
func (s *Store) WithRetry(maxAttempts int, backoff time.Duration) *Store {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if backoff >= 0 {
		s.backoff = backoff
	}
	return s
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		logger.Warn("Atomic unit aborted by concurrent transaction, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return domain.WrapError(domain.CodeTransient, "atomic unit retries exhausted", lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, newTx(sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isRetryable matches serialization_failure and deadlock_detected.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

type txRepos struct {
	users        repository.UserRepository
	wallets      repository.WalletRepository
	ledger       repository.LedgerRepository
	rentals      repository.RentalRepository
	issueReports repository.IssueReportRepository
	topUps       repository.TopUpRepository
	withdrawals  repository.WithdrawalRepository
}

func newTx(q querier) *txRepos {
	return &txRepos{
		users:        &userRepository{db: q},
		wallets:      &walletRepository{db: q},
		ledger:       &ledgerRepository{db: q},
		rentals:      &rentalRepository{db: q},
		issueReports: &issueReportRepository{db: q},
		topUps:       &topUpRepository{db: q},
		withdrawals:  &withdrawalRepository{db: q},
	}
}

func (t *txRepos) Users() repository.UserRepository               { return t.users }
func (t *txRepos) Wallets() repository.WalletRepository           { return t.wallets }
func (t *txRepos) Ledger() repository.LedgerRepository            { return t.ledger }
func (t *txRepos) Rentals() repository.RentalRepository           { return t.rentals }
func (t *txRepos) IssueReports() repository.IssueReportRepository { return t.issueReports }
func (t *txRepos) TopUps() repository.TopUpRepository             { return t.topUps }
func (t *txRepos) Withdrawals() repository.WithdrawalRepository   { return t.withdrawals }

// NewWalletRepository returns a wallet repository outside any atomic unit.
func NewWalletRepository(db *sql.DB) repository.WalletRepository {
	return &walletRepository{db: db}
}

func NewLedgerRepository(db *sql.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

func NewRentalRepository(db *sql.DB) repository.RentalRepository {
	return &rentalRepository{db: db}
}

func NewWithdrawalRepository(db *sql.DB) repository.WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Errorf(domain.CodeNotFound, "%s %s not found", kind, id)
	}
	return err
}

func offset(page, pageSize int32) int32 {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
