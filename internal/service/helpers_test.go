package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/domain"
	"rently-backend/internal/escrow"
	"rently-backend/internal/repository/memory"
	"rently-backend/internal/service"
)

var baseTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

const (
	renterID  = "renter"
	ownerID   = "owner"
	adminID   = "admin-1"
	day       = 24 * time.Hour
	itemDrill = "item-drill"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.Called(ctx, n)
}

type MockEvidenceChecker struct {
	mock.Mock
}

func (m *MockEvidenceChecker) FileExists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	clock    *fakeClock
	notifier *MockNotifier
	ledger   service.LedgerService
	users    service.UserService
	rentals  service.RentalService
	issues   service.IssueReportService
	payments service.PaymentService
	admin    domain.Actor
}

func newFixture(t *testing.T, extra ...service.Option) *fixture {
	t.Helper()

	clock := &fakeClock{now: baseTime}
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return()

	opts := append([]service.Option{
		service.WithClock(clock.Now),
		service.WithNotifier(notifier),
	}, extra...)

	store := memory.NewStore()
	calc := escrow.DefaultCalculator()
	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		clock:    clock,
		notifier: notifier,
		ledger:   service.NewLedgerService(store, opts...),
		users:    service.NewUserService(store, opts...),
		rentals:  service.NewRentalService(store, calc, service.DefaultRentalPolicy(), opts...),
		issues:   service.NewIssueReportService(store, calc, service.DefaultRentalPolicy(), opts...),
		payments: service.NewPaymentService(store, service.DefaultPaymentPolicy(), opts...),
		admin:    domain.Actor{UserID: adminID, Role: domain.UserRoleAdmin},
	}

	_, err := f.ledger.EnsureAdminWallet(f.ctx)
	require.NoError(t, err)
	f.onboard(t, renterID)
	f.onboard(t, ownerID)
	return f
}

func (f *fixture) onboard(t *testing.T, userID string) *domain.WalletPair {
	t.Helper()
	_, wallets, err := f.users.Onboard(f.ctx, &domain.User{ID: userID, Name: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return wallets
}

func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	wallets, err := f.ledger.ResolveWallets(f.ctx, userID)
	require.NoError(t, err)
	_, err = f.ledger.Transfer(f.ctx, nil, &wallets.User.ID, amount, domain.PurposeTopUpStripe, "seed-"+userID)
	require.NoError(t, err)
}

// balances returns the USER and HOLDING balances of a user.
func (f *fixture) balances(t *testing.T, userID string) (int64, int64) {
	t.Helper()
	wallets, err := f.ledger.ResolveWallets(f.ctx, userID)
	require.NoError(t, err)
	return wallets.User.Balance, wallets.Holding.Balance
}

func (f *fixture) adminBalance(t *testing.T) int64 {
	t.Helper()
	w, err := f.ledger.EnsureAdminWallet(f.ctx)
	require.NoError(t, err)
	return w.Balance
}

// total sums every wallet of the renter, the owner and the platform.
func (f *fixture) total(t *testing.T) int64 {
	t.Helper()
	sum := f.adminBalance(t)
	for _, id := range []string{renterID, ownerID} {
		u, h := f.balances(t, id)
		sum += u + h
	}
	return sum
}

func (f *fixture) entriesFor(t *testing.T, correlationID string) []domain.LedgerEntry {
	t.Helper()
	entries, _, err := f.ledger.ListEntries(f.ctx, renterID, 1, 100)
	require.NoError(t, err)
	var out []domain.LedgerEntry
	for _, e := range entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out
}

func dailyTerms(start time.Time, days int, price, originalValue int64, rate float64) domain.RentalTerms {
	return domain.RentalTerms{
		OwnerID:        ownerID,
		RentalType:     domain.RentalTypeDaily,
		RentalQuantity: days,
		StartDate:      start,
		EndDate:        start.Add(time.Duration(days) * day),
		RentalPrice:    price,
		OriginalValue:  originalValue,
		InsuranceRate:  rate,
	}
}

func (f *fixture) createPending(t *testing.T, itemID string, terms domain.RentalTerms) *domain.RentalRequest {
	t.Helper()
	rental, err := f.rentals.CreateRentalRequest(f.ctx, renterID, itemID, terms)
	require.NoError(t, err)
	return rental
}

func (f *fixture) createAccepted(t *testing.T, itemID string, terms domain.RentalTerms) *domain.RentalRequest {
	t.Helper()
	rental := f.createPending(t, itemID, terms)
	accepted, err := f.rentals.TransitionRental(f.ctx, rental.ID, domain.RentalActionAccept, ownerID, "")
	require.NoError(t, err)
	return accepted
}

// createActive accepts the request and picks it up one hour before the start.
// It moves the clock.
func (f *fixture) createActive(t *testing.T, itemID string, terms domain.RentalTerms) *domain.RentalRequest {
	t.Helper()
	accepted := f.createAccepted(t, itemID, terms)
	f.clock.Set(terms.StartDate.Add(-time.Hour))
	active, err := f.rentals.TransitionRental(f.ctx, accepted.ID, domain.RentalActionConfirmPickup, renterID, accepted.PickupToken)
	require.NoError(t, err)
	return active
}
