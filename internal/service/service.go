package service

import (
	"context"
	"time"

	"rently-backend/internal/domain"
)

// LedgerService moves money between wallets. Every call is one atomic unit.
type LedgerService interface {
	Transfer(ctx context.Context, from, to *string, amount int64, purpose domain.EntryPurpose, correlationID string) (*domain.LedgerEntry, error)
	RecordPending(ctx context.Context, from, to *string, amount int64, purpose domain.EntryPurpose, correlationID string, expiresAt time.Time) (*domain.LedgerEntry, error)
	ConfirmPending(ctx context.Context, entryID string) (*domain.LedgerEntry, error)
	FailPending(ctx context.Context, entryID string) (*domain.LedgerEntry, error)
	ResolveWallets(ctx context.Context, userID string) (*domain.WalletPair, error)
	EnsureAdminWallet(ctx context.Context) (*domain.Wallet, error)
	ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error)
	ListEntries(ctx context.Context, userID string, page, pageSize int32) ([]domain.LedgerEntry, int32, error)
}

type RentalService interface {
	CreateRentalRequest(ctx context.Context, renterID, itemID string, terms domain.RentalTerms) (*domain.RentalRequest, error)
	// TransitionRental applies a participant action. handoffToken is checked
	// for pickup and return.
	TransitionRental(ctx context.Context, rentalID string, action domain.RentalAction, actorID, handoffToken string) (*domain.RentalRequest, error)
	GetRental(ctx context.Context, actor domain.Actor, rentalID string) (*domain.RentalRequest, error)
	ListRentals(ctx context.Context, actor domain.Actor, filter domain.RentalFilter) ([]domain.RentalRequest, int32, error)

	// Sweeper operations. Each re-checks its precondition inside the unit and
	// reports false when the request had already moved on.
	DuePendingRentals(ctx context.Context, limit int) ([]string, error)
	DueNoShowRentals(ctx context.Context, limit int) ([]string, error)
	DueUnreturnedRentals(ctx context.Context, limit int) ([]string, error)
	ExpirePendingRental(ctx context.Context, rentalID string) (bool, error)
	CancelNoShowRental(ctx context.Context, rentalID string) (bool, error)
	SettleUnreturnedRental(ctx context.Context, rentalID string) (bool, error)
}

type IssueReportService interface {
	ReportIssue(ctx context.Context, rentalID, actorID string, input domain.IssueReportInput) (*domain.IssueReport, error)
	ResolveIssueReport(ctx context.Context, actor domain.Actor, reportID string, decision domain.IssueDecision) (*domain.IssueReport, error)
	ListIssueReports(ctx context.Context, actor domain.Actor, rentalID string) ([]domain.IssueReport, error)
}

type PaymentService interface {
	CreateTopUp(ctx context.Context, userID string, amount int64, method domain.TopUpMethod, reference string) (*domain.TopUp, error)
	ConfirmPendingTopUp(ctx context.Context, entryID string) (*domain.LedgerEntry, error)
	FailPendingTopUp(ctx context.Context, entryID string) (*domain.LedgerEntry, error)
	RequestWithdrawal(ctx context.Context, userID string, amount int64, method domain.WithdrawalMethod, dest domain.WithdrawalDestination) (*domain.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, actor domain.Actor, withdrawalID string) (*domain.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, actor domain.Actor, withdrawalID string) (*domain.Withdrawal, error)

	DueTopUps(ctx context.Context, limit int) ([]string, error)
	DueWithdrawals(ctx context.Context, limit int) ([]string, error)
	ExpireTopUp(ctx context.Context, entryID string) (bool, error)
	ExpireWithdrawal(ctx context.Context, withdrawalID string) (bool, error)
}

type UserService interface {
	// Onboard creates the user with its USER and HOLDING wallets. Calling it
	// again for the same id returns the existing user.
	Onboard(ctx context.Context, user *domain.User) (*domain.User, *domain.WalletPair, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateFCMToken(ctx context.Context, userID, token string) error
}

// Notifier delivers participant notifications. Delivery is best effort and
// never blocks or fails the operation that triggered it.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// EvidenceChecker verifies that uploaded evidence exists before a report references it.
type EvidenceChecker interface {
	FileExists(ctx context.Context, key string) (bool, error)
}

// ProfileInvalidator drops cached copies of a user's contact profile.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notification) {}

// Clock returns the current time. Services read it once per operation.
type Clock func() time.Time

type options struct {
	now      Clock
	notifier Notifier
	evidence EvidenceChecker
	profiles ProfileInvalidator
}

type Option func(*options)

func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

func WithEvidenceChecker(c EvidenceChecker) Option {
	return func(o *options) {
		o.evidence = c
	}
}

func WithProfileInvalidator(p ProfileInvalidator) Option {
	return func(o *options) {
		o.profiles = p
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:      func() time.Time { return time.Now().UTC() },
		notifier: noopNotifier{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
