package repository

import (
	"context"
	"time"

	"rently-backend/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id string) (*domain.Wallet, error)
	// GetForUpdate reads the wallet and locks it until the atomic unit ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Wallet, error)
	GetByUserAndKind(ctx context.Context, userID string, kind domain.WalletKind) (*domain.Wallet, error)
	GetAdmin(ctx context.Context) (*domain.Wallet, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Wallet, error)
	UpdateBalance(ctx context.Context, id string, balance int64) error
}

type LedgerRepository interface {
	Create(ctx context.Context, entry *domain.LedgerEntry) error
	GetForUpdate(ctx context.Context, id string) (*domain.LedgerEntry, error)
	// UpdateStatus moves a pending entry to a final status. It never touches
	// an entry that is already final.
	UpdateStatus(ctx context.Context, id string, status domain.EntryStatus) error
	ListByCorrelation(ctx context.Context, correlationID string) ([]domain.LedgerEntry, error)
	ListByWallets(ctx context.Context, walletIDs []string, page, pageSize int32) ([]domain.LedgerEntry, int32, error)
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.RentalRequest) error
	GetByID(ctx context.Context, id string) (*domain.RentalRequest, error)
	GetForUpdate(ctx context.Context, id string) (*domain.RentalRequest, error)
	Update(ctx context.Context, rental *domain.RentalRequest) error
	// FindOverlapping returns accepted or active requests for the item whose
	// window intersects [from, to), excluding excludeID.
	FindOverlapping(ctx context.Context, itemID string, from, to time.Time, excludeID string) ([]domain.RentalRequest, error)
	// ListStartedBefore returns ids of requests in status whose start date is before t.
	ListStartedBefore(ctx context.Context, status domain.RentalStatus, t time.Time, limit int) ([]string, error)
	// ListEndedBefore returns ids of requests in status whose end date is before t.
	ListEndedBefore(ctx context.Context, status domain.RentalStatus, t time.Time, limit int) ([]string, error)
	List(ctx context.Context, filter domain.RentalFilter) ([]domain.RentalRequest, int32, error)
}

type IssueReportRepository interface {
	Create(ctx context.Context, report *domain.IssueReport) error
	GetByID(ctx context.Context, id string) (*domain.IssueReport, error)
	GetForUpdate(ctx context.Context, id string) (*domain.IssueReport, error)
	Update(ctx context.Context, report *domain.IssueReport) error
	ListByRental(ctx context.Context, rentalID string) ([]domain.IssueReport, error)
}

type TopUpRepository interface {
	Create(ctx context.Context, topUp *domain.TopUp) error
	GetByEntryIDForUpdate(ctx context.Context, entryID string) (*domain.TopUp, error)
	Update(ctx context.Context, topUp *domain.TopUp) error
	// ListExpiredPending returns the ledger entry ids of pending top-ups that expired before t.
	ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]string, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *domain.Withdrawal) error
	GetByID(ctx context.Context, id string) (*domain.Withdrawal, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Withdrawal, error)
	Update(ctx context.Context, withdrawal *domain.Withdrawal) error
	ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// Tx exposes the repositories bound to one atomic unit.
type Tx interface {
	Users() UserRepository
	Wallets() WalletRepository
	Ledger() LedgerRepository
	Rentals() RentalRepository
	IssueReports() IssueReportRepository
	TopUps() TopUpRepository
	Withdrawals() WithdrawalRepository
}

// Store runs atomic units. fn sees a consistent snapshot and all of its writes
// commit together or not at all. If fn returns an error nothing is written and
// the error is returned unchanged. Storage-level conflicts are retried a bounded
// number of times, so fn must be safe to run more than once.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
