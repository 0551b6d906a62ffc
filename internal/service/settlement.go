package service

import (
	"context"
	"errors"
	"time"

	"rently-backend/internal/domain"
	"rently-backend/internal/escrow"
	"rently-backend/internal/repository"
)

// RentalPolicy holds the time windows that guard participant actions.
type RentalPolicy struct {
	// Buffer is the gap kept free around every accepted or active rental of an item.
	Buffer      time.Duration
	ReturnGrace time.Duration
	// PickupLead and ReturnLead are rolling windows before start and end, not
	// calendar days: pickup is open in [start-PickupLead, start] and closes
	// when the no-show sweep may fire, return opens at end-ReturnLead.
	PickupLead time.Duration
	ReturnLead time.Duration
	// RequireHandoffToken makes pickup and return present the token minted by
	// the previous step.
	RequireHandoffToken bool
}

func DefaultRentalPolicy() RentalPolicy {
	return RentalPolicy{
		Buffer:              5 * 24 * time.Hour,
		ReturnGrace:         3 * 24 * time.Hour,
		PickupLead:          24 * time.Hour,
		ReturnLead:          24 * time.Hour,
		RequireHandoffToken: true,
	}
}

// parties are the wallets touched while settling one rental.
type parties struct {
	renter *domain.WalletPair
	owner  *domain.WalletPair
}

// settler moves escrowed money for a rental. All amounts leaving escrow come
// out of the renter's HOLDING wallet, and every entry carries the rental id as
// its correlation id.
type settler struct {
	ledger *ledgerOps
	calc   *escrow.Calculator
}

// entryIDs collects the ids of the entries one transition writes.
type entryIDs []string

func (e *entryIDs) add(entry *domain.LedgerEntry) {
	if entry != nil {
		*e = append(*e, entry.ID)
	}
}

func (s *settler) resolveParties(ctx context.Context, tx repository.Tx, r *domain.RentalRequest) (*parties, error) {
	renter, err := s.ledger.resolveWallets(ctx, tx, r.RenterID)
	if err != nil {
		return nil, err
	}
	owner, err := s.ledger.resolveWallets(ctx, tx, r.OwnerID)
	if err != nil {
		return nil, err
	}
	return &parties{renter: renter, owner: owner}, nil
}

// fromHolding pays amount out of the renter's HOLDING wallet. A zero amount
// writes nothing.
func (s *settler) fromHolding(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, to *string, amount int64, purpose domain.EntryPurpose) (*domain.LedgerEntry, error) {
	if amount == 0 {
		return nil, nil
	}
	entry, err := s.ledger.transfer(ctx, tx, &p.renter.Holding.ID, to, amount, purpose, r.ID)
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return nil, domain.WrapError(domain.CodeInsufficientHolding, "escrow for rental "+r.ID+" is short", err)
	}
	return entry, err
}

func (s *settler) requireHolding(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, need int64) error {
	holding, err := tx.Wallets().GetForUpdate(ctx, p.renter.Holding.ID)
	if err != nil {
		return err
	}
	if holding.Balance < need {
		return domain.Errorf(domain.CodeInsufficientHolding, "rental %s needs %d in escrow, holding wallet has %d", r.ID, need, holding.Balance)
	}
	return nil
}

func (s *settler) refundAll(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, purpose domain.EntryPurpose) (entryIDs, error) {
	var ids entryIDs
	entry, err := s.fromHolding(ctx, tx, p, r, &p.renter.User.ID, r.TotalPrice, purpose)
	if err != nil {
		return nil, err
	}
	ids.add(entry)
	return ids, nil
}

// releasePrice pays the rental price out at pickup: the owner's share to the
// owner and the commission to the platform.
func (s *settler) releasePrice(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest) (entryIDs, error) {
	if err := s.requireHolding(ctx, tx, p, r, r.RentalPrice+r.Insurance.Amount); err != nil {
		return nil, err
	}
	admin, err := s.ledger.adminWallet(ctx, tx)
	if err != nil {
		return nil, err
	}

	split := s.calc.CommissionSplit(r.RentalPrice)
	var ids entryIDs
	payout, err := s.fromHolding(ctx, tx, p, r, &p.owner.User.ID, split.OwnerAmount, domain.PurposeRentalPayout)
	if err != nil {
		return nil, err
	}
	ids.add(payout)
	commission, err := s.fromHolding(ctx, tx, p, r, &admin.ID, split.CommissionAmount, domain.PurposePlatformCommission)
	if err != nil {
		return nil, err
	}
	ids.add(commission)
	return ids, nil
}

// settleNoShow gives the owner the no-show penalty and returns the rest of the
// escrow to the renter under refundPurpose.
func (s *settler) settleNoShow(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, refundPurpose domain.EntryPurpose) (entryIDs, error) {
	penalty := s.calc.NoShowPenalty(r.RentalPrice)
	if penalty > r.TotalPrice {
		penalty = r.TotalPrice
	}

	var ids entryIDs
	entry, err := s.fromHolding(ctx, tx, p, r, &p.owner.User.ID, penalty, domain.PurposeRentalNoShowPenalty)
	if err != nil {
		return nil, err
	}
	ids.add(entry)
	entry, err = s.fromHolding(ctx, tx, p, r, &p.renter.User.ID, r.TotalPrice-penalty, refundPurpose)
	if err != nil {
		return nil, err
	}
	ids.add(entry)
	return ids, nil
}

// settleReturn releases the insurance to the renter and then collects the
// late fee from the renter's USER wallet. It returns the fee actually collected.
func (s *settler) settleReturn(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, lateFee int64) (int64, entryIDs, error) {
	if err := s.requireHolding(ctx, tx, p, r, r.Insurance.Amount); err != nil {
		return 0, nil, err
	}

	var ids entryIDs
	entry, err := s.fromHolding(ctx, tx, p, r, &p.renter.User.ID, r.Insurance.Amount, domain.PurposeRentalInsuranceRelease)
	if err != nil {
		return 0, nil, err
	}
	ids.add(entry)

	collected, entry, err := s.collectLateFee(ctx, tx, p, r, lateFee)
	if err != nil {
		return 0, nil, err
	}
	ids.add(entry)
	return collected, ids, nil
}

// settleDamage splits the insurance by severity between owner and renter and
// collects the late fee.
func (s *settler) settleDamage(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, severity domain.Severity, lateFee int64) (int64, entryIDs, error) {
	split, err := escrow.SplitInsurance(r.Insurance.Amount, severity)
	if err != nil {
		return 0, nil, err
	}
	if err := s.requireHolding(ctx, tx, p, r, r.Insurance.Amount); err != nil {
		return 0, nil, err
	}

	var ids entryIDs
	entry, err := s.fromHolding(ctx, tx, p, r, &p.owner.User.ID, split.PayoutToOwner, domain.PurposeRentalInsurancePayout)
	if err != nil {
		return 0, nil, err
	}
	ids.add(entry)
	entry, err = s.fromHolding(ctx, tx, p, r, &p.renter.User.ID, split.RefundToRenter, domain.PurposeRentalInsuranceRefund)
	if err != nil {
		return 0, nil, err
	}
	ids.add(entry)

	collected, entry, err := s.collectLateFee(ctx, tx, p, r, lateFee)
	if err != nil {
		return 0, nil, err
	}
	ids.add(entry)
	return collected, ids, nil
}

// forfeitInsurance pays the whole insurance to the owner.
func (s *settler) forfeitInsurance(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest) (entryIDs, error) {
	var ids entryIDs
	entry, err := s.fromHolding(ctx, tx, p, r, &p.owner.User.ID, r.Insurance.Amount, domain.PurposeRentalInsurancePayoutFull)
	if err != nil {
		return nil, err
	}
	ids.add(entry)
	return ids, nil
}

// collectLateFee moves the late fee from the renter's USER wallet to the
// owner, capped at what the renter holds.
func (s *settler) collectLateFee(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, lateFee int64) (int64, *domain.LedgerEntry, error) {
	if lateFee <= 0 {
		return 0, nil, nil
	}
	wallet, err := tx.Wallets().GetForUpdate(ctx, p.renter.User.ID)
	if err != nil {
		return 0, nil, err
	}
	collected := lateFee
	if wallet.Balance < collected {
		collected = wallet.Balance
	}
	if collected == 0 {
		return 0, nil, nil
	}
	entry, err := s.ledger.transfer(ctx, tx, &p.renter.User.ID, &p.owner.User.ID, collected, domain.PurposeRentalLateFee, r.ID)
	if err != nil {
		return 0, nil, err
	}
	return collected, entry, nil
}
