package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rently-backend/internal/domain"
	"rently-backend/internal/escrow"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

type rentalService struct {
	store    repository.Store
	ledger   *ledgerOps
	settle   *settler
	policy   RentalPolicy
	notifier Notifier
	now      Clock
}

func NewRentalService(store repository.Store, calc *escrow.Calculator, policy RentalPolicy, opts ...Option) RentalService {
	o := buildOptions(opts)
	ledger := &ledgerOps{now: o.now}
	return &rentalService{
		store:    store,
		ledger:   ledger,
		settle:   &settler{ledger: ledger, calc: calc},
		policy:   policy,
		notifier: o.notifier,
		now:      o.now,
	}
}

func (s *rentalService) CreateRentalRequest(ctx context.Context, renterID, itemID string, terms domain.RentalTerms) (*domain.RentalRequest, error) {
	logger.EnterMethod("rentalService.CreateRentalRequest", "renterID", renterID, "itemID", itemID, "ownerID", terms.OwnerID)

	now := s.now()
	if err := s.validateTerms(renterID, itemID, terms, now); err != nil {
		logger.ExitMethodWithError("rentalService.CreateRentalRequest", err)
		return nil, err
	}

	insurance := escrow.InsuranceAmount(terms.OriginalValue, terms.InsuranceRate)
	rental := &domain.RentalRequest{
		ID:             uuid.NewString(),
		ItemID:         itemID,
		OwnerID:        terms.OwnerID,
		RenterID:       renterID,
		RentalType:     terms.RentalType,
		RentalQuantity: terms.RentalQuantity,
		StartDate:      terms.StartDate.UTC(),
		EndDate:        terms.EndDate.UTC(),
		RentalPrice:    terms.RentalPrice,
		Insurance: domain.InsuranceTerms{
			OriginalValue: terms.OriginalValue,
			Rate:          terms.InsuranceRate,
			Amount:        insurance,
		},
		TotalPrice:    terms.RentalPrice + insurance,
		Status:        domain.RentalStatusPending,
		PaymentStatus: domain.PaymentStatusLocked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var ids entryIDs
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		ids = nil
		renter, err := tx.Users().GetByID(ctx, renterID)
		if err != nil {
			return err
		}
		if renter.RentalBlocked {
			return domain.Errorf(domain.CodePermissionDenied, "user %s is blocked from renting", renterID)
		}
		if _, err := tx.Users().GetByID(ctx, terms.OwnerID); err != nil {
			return err
		}
		if err := s.checkAvailability(ctx, tx, rental); err != nil {
			return err
		}

		wallets, err := s.ledger.resolveWallets(ctx, tx, renterID)
		if err != nil {
			return err
		}
		lock, err := s.ledger.transfer(ctx, tx, &wallets.User.ID, &wallets.Holding.ID, rental.TotalPrice, domain.PurposeRentalLock, rental.ID)
		if err != nil {
			return err
		}
		ids.add(lock)
		return tx.Rentals().Create(ctx, rental)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.CreateRentalRequest", err, "rentalID", rental.ID)
		return nil, err
	}

	logger.Transition(ctx, rental.ID, "", string(rental.Status), ids, "total_price", rental.TotalPrice)
	s.notifier.Notify(ctx, rentalNotification(rental, rental.OwnerID, domain.NotificationRentalRequest,
		"New rental request", fmt.Sprintf("You have a new rental request for item %s", rental.ItemID)))
	logger.ExitMethod("rentalService.CreateRentalRequest", "rentalID", rental.ID)
	return rental, nil
}

func (s *rentalService) validateTerms(renterID, itemID string, t domain.RentalTerms, now time.Time) error {
	switch {
	case renterID == "" || itemID == "" || t.OwnerID == "":
		return domain.Errorf(domain.CodeInvalidArgument, "renter, owner and item are required")
	case renterID == t.OwnerID:
		return domain.Errorf(domain.CodeInvalidArgument, "an owner cannot rent their own item")
	case !t.RentalType.Valid():
		return domain.Errorf(domain.CodeInvalidArgument, "unknown rental type %q", t.RentalType)
	case t.RentalQuantity <= 0:
		return domain.Errorf(domain.CodeInvalidArgument, "rental quantity must be positive")
	case !t.EndDate.After(t.StartDate):
		return domain.Errorf(domain.CodeInvalidArgument, "end date must be after start date")
	case !t.StartDate.After(now):
		return domain.Errorf(domain.CodeInvalidArgument, "start date must be in the future")
	case t.RentalPrice <= 0:
		return domain.Errorf(domain.CodeInvalidArgument, "rental price must be positive")
	case t.OriginalValue < 0:
		return domain.Errorf(domain.CodeInvalidArgument, "original value cannot be negative")
	case t.InsuranceRate < 0 || t.InsuranceRate > 1:
		return domain.Errorf(domain.CodeInvalidArgument, "insurance rate must be between 0 and 1")
	}
	if units := escrow.RentalUnits(t.RentalType, t.StartDate, t.EndDate); units != t.RentalQuantity {
		return domain.Errorf(domain.CodeInvalidArgument, "rental quantity %d does not match the %d %s units between start and end", t.RentalQuantity, units, t.RentalType)
	}
	return nil
}

// checkAvailability rejects a window that comes within the buffer of another
// accepted or active rental of the same item.
func (s *rentalService) checkAvailability(ctx context.Context, tx repository.Tx, r *domain.RentalRequest) error {
	from := r.StartDate.Add(-s.policy.Buffer)
	to := r.EndDate.Add(s.policy.Buffer)
	overlapping, err := tx.Rentals().FindOverlapping(ctx, r.ItemID, from, to, r.ID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return domain.Errorf(domain.CodeConflict, "item %s is booked by rental %s within the buffer of the requested window", r.ItemID, overlapping[0].ID)
	}
	return nil
}

func (s *rentalService) TransitionRental(ctx context.Context, rentalID string, action domain.RentalAction, actorID, handoffToken string) (*domain.RentalRequest, error) {
	logger.EnterMethod("rentalService.TransitionRental", "rentalID", rentalID, "action", action, "actorID", actorID)

	var step func(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, actorID, token string, now time.Time) (entryIDs, error)
	switch action {
	case domain.RentalActionAccept:
		step = s.accept
	case domain.RentalActionReject:
		step = s.reject
	case domain.RentalActionCancel:
		step = s.cancel
	case domain.RentalActionConfirmPickup:
		step = s.confirmPickup
	case domain.RentalActionConfirmReturn:
		step = s.confirmReturn
	default:
		return nil, domain.Errorf(domain.CodeInvalidArgument, "unknown rental action %q", action)
	}

	var (
		rental *domain.RentalRequest
		from   domain.RentalStatus
		ids    entryIDs
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		rental, err = tx.Rentals().GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		from = rental.Status
		now := s.now()
		ids, err = step(ctx, tx, rental, actorID, handoffToken, now)
		if err != nil {
			return err
		}
		rental.UpdatedAt = now
		return tx.Rentals().Update(ctx, rental)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.TransitionRental", err, "rentalID", rentalID, "action", action)
		return nil, err
	}

	logger.Transition(ctx, rental.ID, string(from), string(rental.Status), ids, "action", action, "actor_id", actorID)
	s.notifyTransition(ctx, rental, action)
	logger.ExitMethod("rentalService.TransitionRental", "rentalID", rentalID, "status", rental.Status)
	return rental, nil
}

func (s *rentalService) accept(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, actorID, _ string, now time.Time) (entryIDs, error) {
	if actorID != r.OwnerID {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only the owner can accept rental %s", r.ID)
	}
	if err := expectStatus(r, domain.RentalStatusPending); err != nil {
		return nil, err
	}
	if !r.StartDate.After(now) {
		return nil, domain.Errorf(domain.CodeWindowExpired, "rental %s started at %s", r.ID, r.StartDate.Format(time.RFC3339))
	}
	if err := s.checkAvailability(ctx, tx, r); err != nil {
		return nil, err
	}

	r.Status = domain.RentalStatusAccepted
	r.AcceptedAt = &now
	r.PickupToken = uuid.NewString()
	return nil, nil
}

func (s *rentalService) reject(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, actorID, _ string, now time.Time) (entryIDs, error) {
	if actorID != r.OwnerID {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only the owner can reject rental %s", r.ID)
	}
	if err := expectStatus(r, domain.RentalStatusPending); err != nil {
		return nil, err
	}
	p, err := s.settle.resolveParties(ctx, tx, r)
	if err != nil {
		return nil, err
	}
	ids, err := s.settle.refundAll(ctx, tx, p, r, domain.PurposeRentalRejectRefund)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RentalStatusRejected
	r.PaymentStatus = domain.PaymentStatusRefunded
	r.ClosedAt = &now
	return ids, nil
}

func (s *rentalService) cancel(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, actorID, _ string, now time.Time) (entryIDs, error) {
	if actorID != r.RenterID {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only the renter can cancel rental %s", r.ID)
	}
	if err := expectStatus(r, domain.RentalStatusPending); err != nil {
		return nil, err
	}
	p, err := s.settle.resolveParties(ctx, tx, r)
	if err != nil {
		return nil, err
	}
	ids, err := s.settle.refundAll(ctx, tx, p, r, domain.PurposeRentalCancelRefund)
	if err != nil {
		return nil, err
	}

	reason := domain.CancelReasonRenterCancelled
	r.Status = domain.RentalStatusCancelled
	r.CancelReason = &reason
	r.PaymentStatus = domain.PaymentStatusRefunded
	r.ClosedAt = &now
	return ids, nil
}

func (s *rentalService) confirmPickup(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, actorID, token string, now time.Time) (entryIDs, error) {
	if actorID != r.RenterID {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only the renter can confirm pickup of rental %s", r.ID)
	}
	if err := expectStatus(r, domain.RentalStatusAccepted); err != nil {
		return nil, err
	}
	if now.Before(r.StartDate.Add(-s.policy.PickupLead)) {
		return nil, domain.Errorf(domain.CodeNotYetAllowed, "pickup of rental %s opens %s before the start date", r.ID, s.policy.PickupLead)
	}
	if now.After(r.StartDate) {
		return nil, domain.Errorf(domain.CodeWindowExpired, "pickup window of rental %s closed at %s", r.ID, r.StartDate.Format(time.RFC3339))
	}
	if err := s.checkToken(token, r.PickupToken); err != nil {
		return nil, err
	}

	p, err := s.settle.resolveParties(ctx, tx, r)
	if err != nil {
		return nil, err
	}
	ids, err := s.settle.releasePrice(ctx, tx, p, r)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RentalStatusActive
	r.PaymentStatus = domain.PaymentStatusReleased
	r.PickedUpAt = &now
	r.ReturnToken = uuid.NewString()
	return ids, nil
}

func (s *rentalService) confirmReturn(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, actorID, token string, now time.Time) (entryIDs, error) {
	if actorID != r.OwnerID {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only the owner can confirm return of rental %s", r.ID)
	}
	if err := expectStatus(r, domain.RentalStatusActive); err != nil {
		return nil, err
	}
	if now.Before(r.EndDate.Add(-s.policy.ReturnLead)) {
		return nil, domain.Errorf(domain.CodeNotYetAllowed, "return of rental %s opens %s before the end date", r.ID, s.policy.ReturnLead)
	}
	if now.After(r.EndDate.Add(s.policy.ReturnGrace)) {
		return nil, domain.Errorf(domain.CodeWindowExpired, "return grace period of rental %s is over", r.ID)
	}
	if err := s.checkToken(token, r.ReturnToken); err != nil {
		return nil, err
	}

	lateDays := escrow.LateDays(r.EndDate, now)
	lateFee := escrow.LateFee(r.RentalType, r.RentalQuantity, r.RentalPrice, lateDays)

	p, err := s.settle.resolveParties(ctx, tx, r)
	if err != nil {
		return nil, err
	}
	collected, ids, err := s.settle.settleReturn(ctx, tx, p, r, lateFee)
	if err != nil {
		return nil, err
	}

	reason := domain.EndReasonNormal
	if lateDays > 0 {
		reason = domain.EndReasonLate
	}
	r.Status = domain.RentalStatusEnded
	r.EndReason = &reason
	r.LateDays = lateDays
	r.LateFee = collected
	r.PaymentStatus = domain.PaymentStatusSettled
	r.ReturnedAt = &now
	r.ClosedAt = &now
	return ids, nil
}

func (s *rentalService) checkToken(presented, expected string) error {
	if !s.policy.RequireHandoffToken {
		return nil
	}
	if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return domain.Errorf(domain.CodeInvalidArgument, "handoff token does not match")
	}
	return nil
}

func expectStatus(r *domain.RentalRequest, want domain.RentalStatus) error {
	if r.Status != want {
		return domain.Errorf(domain.CodeAlreadyProcessed, "rental %s is %s, expected %s", r.ID, r.Status, want)
	}
	return nil
}

func (s *rentalService) GetRental(ctx context.Context, actor domain.Actor, rentalID string) (*domain.RentalRequest, error) {
	var rental *domain.RentalRequest
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		rental, err = tx.Rentals().GetByID(ctx, rentalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.UserID != rental.RenterID && actor.UserID != rental.OwnerID {
		return nil, domain.Errorf(domain.CodePermissionDenied, "user %s is not a participant of rental %s", actor.UserID, rentalID)
	}
	return rental, nil
}

// ListRentals lists the caller's rentals. Without a participant filter the
// caller's rentals as renter are returned.
func (s *rentalService) ListRentals(ctx context.Context, actor domain.Actor, filter domain.RentalFilter) ([]domain.RentalRequest, int32, error) {
	if !actor.IsAdmin() {
		switch {
		case filter.RenterID == "" && filter.OwnerID == "":
			filter.RenterID = actor.UserID
		case filter.RenterID != actor.UserID && filter.OwnerID != actor.UserID:
			return nil, 0, domain.Errorf(domain.CodePermissionDenied, "user %s can only list their own rentals", actor.UserID)
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.Errorf(domain.CodeInvalidArgument, "unknown rental status %q", filter.Status)
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	var (
		rentals []domain.RentalRequest
		total   int32
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		rentals, total, err = tx.Rentals().List(ctx, filter)
		return err
	})
	return rentals, total, err
}

func (s *rentalService) DuePendingRentals(ctx context.Context, limit int) ([]string, error) {
	return s.listIDs(ctx, func(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
		return tx.Rentals().ListStartedBefore(ctx, domain.RentalStatusPending, now, limit)
	})
}

func (s *rentalService) DueNoShowRentals(ctx context.Context, limit int) ([]string, error) {
	return s.listIDs(ctx, func(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
		return tx.Rentals().ListStartedBefore(ctx, domain.RentalStatusAccepted, now, limit)
	})
}

func (s *rentalService) DueUnreturnedRentals(ctx context.Context, limit int) ([]string, error) {
	return s.listIDs(ctx, func(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
		return tx.Rentals().ListEndedBefore(ctx, domain.RentalStatusActive, now.Add(-s.policy.ReturnGrace), limit)
	})
}

func (s *rentalService) listIDs(ctx context.Context, list func(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error)) ([]string, error) {
	var ids []string
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ids, err = list(ctx, tx, s.now())
		return err
	})
	return ids, err
}

// ExpirePendingRental refunds a request whose owner never answered before the start date.
func (s *rentalService) ExpirePendingRental(ctx context.Context, rentalID string) (bool, error) {
	rental, applied, err := s.sweep(ctx, rentalID, func(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, now time.Time) (bool, entryIDs, error) {
		if r.Status != domain.RentalStatusPending || r.StartDate.After(now) {
			return false, nil, nil
		}
		p, err := s.settle.resolveParties(ctx, tx, r)
		if err != nil {
			return false, nil, err
		}
		ids, err := s.settle.refundAll(ctx, tx, p, r, domain.PurposeRentalOutdatedRefund)
		if err != nil {
			return false, nil, err
		}
		r.Status = domain.RentalStatusOutdated
		r.PaymentStatus = domain.PaymentStatusRefunded
		r.ClosedAt = &now
		return true, ids, nil
	})
	if err != nil || !applied {
		return false, err
	}
	s.notifier.Notify(ctx, rentalNotification(rental, rental.RenterID, domain.NotificationRentalDecision,
		"Rental request expired", "The owner did not answer before the start date. Your payment was refunded."))
	return true, nil
}

// CancelNoShowRental settles an accepted request the renter never picked up.
func (s *rentalService) CancelNoShowRental(ctx context.Context, rentalID string) (bool, error) {
	rental, applied, err := s.sweep(ctx, rentalID, func(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, now time.Time) (bool, entryIDs, error) {
		if r.Status != domain.RentalStatusAccepted || r.StartDate.After(now) {
			return false, nil, nil
		}
		p, err := s.settle.resolveParties(ctx, tx, r)
		if err != nil {
			return false, nil, err
		}
		ids, err := s.settle.settleNoShow(ctx, tx, p, r, domain.PurposeRentalNoShowRefund)
		if err != nil {
			return false, nil, err
		}
		reason := domain.CancelReasonNoShow
		r.Status = domain.RentalStatusCancelled
		r.CancelReason = &reason
		r.PaymentStatus = domain.PaymentStatusSettled
		r.ClosedAt = &now
		return true, ids, nil
	})
	if err != nil || !applied {
		return false, err
	}
	for _, userID := range []string{rental.RenterID, rental.OwnerID} {
		s.notifier.Notify(ctx, rentalNotification(rental, userID, domain.NotificationNoShow,
			"Rental cancelled", "The item was not picked up before the start date."))
	}
	return true, nil
}

// SettleUnreturnedRental pays the full insurance to the owner of an item that
// was not returned within the grace period and blocks the renter.
func (s *rentalService) SettleUnreturnedRental(ctx context.Context, rentalID string) (bool, error) {
	rental, applied, err := s.sweep(ctx, rentalID, func(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, now time.Time) (bool, entryIDs, error) {
		if r.Status != domain.RentalStatusActive || !r.EndDate.Add(s.policy.ReturnGrace).Before(now) {
			return false, nil, nil
		}
		p, err := s.settle.resolveParties(ctx, tx, r)
		if err != nil {
			return false, nil, err
		}
		ids, err := s.settle.forfeitInsurance(ctx, tx, p, r)
		if err != nil {
			return false, nil, err
		}

		renter, err := tx.Users().GetByID(ctx, r.RenterID)
		if err != nil {
			return false, nil, err
		}
		renter.RentalBlocked = true
		renter.BlockedAt = &now
		renter.UpdatedAt = now
		if err := tx.Users().Update(ctx, renter); err != nil {
			return false, nil, err
		}

		reason := domain.EndReasonNeverReturned
		r.Status = domain.RentalStatusEnded
		r.EndReason = &reason
		r.PaymentStatus = domain.PaymentStatusSettled
		r.ClosedAt = &now
		return true, ids, nil
	})
	if err != nil || !applied {
		return false, err
	}
	s.notifier.Notify(ctx, rentalNotification(rental, rental.OwnerID, domain.NotificationNeverReturned,
		"Item not returned", "The insurance for your item has been paid to your wallet."))
	s.notifier.Notify(ctx, rentalNotification(rental, rental.RenterID, domain.NotificationNeverReturned,
		"Rental closed as not returned", "The insurance was paid to the owner and your account can no longer rent items."))
	return true, nil
}

type sweepStep func(ctx context.Context, tx repository.Tx, r *domain.RentalRequest, now time.Time) (bool, entryIDs, error)

// sweep runs one sweeper transition in its own unit. A request that no longer
// meets the precondition is left untouched and reported as not applied.
func (s *rentalService) sweep(ctx context.Context, rentalID string, step sweepStep) (*domain.RentalRequest, bool, error) {
	var (
		rental  *domain.RentalRequest
		from    domain.RentalStatus
		applied bool
		ids     entryIDs
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		rental, err = tx.Rentals().GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		from = rental.Status
		now := s.now()
		applied, ids, err = step(ctx, tx, rental, now)
		if err != nil || !applied {
			return err
		}
		rental.UpdatedAt = now
		return tx.Rentals().Update(ctx, rental)
	})
	if err != nil {
		return nil, false, err
	}
	if !applied {
		logger.Debug("Sweep skipped, rental already moved on", "rental_id", rentalID, "status", from)
		return rental, false, nil
	}
	logger.Transition(ctx, rental.ID, string(from), string(rental.Status), ids, "sweep", true)
	return rental, true, nil
}

func (s *rentalService) notifyTransition(ctx context.Context, r *domain.RentalRequest, action domain.RentalAction) {
	switch action {
	case domain.RentalActionAccept:
		s.notifier.Notify(ctx, rentalNotification(r, r.RenterID, domain.NotificationRentalDecision,
			"Rental accepted", "The owner accepted your rental request."))
	case domain.RentalActionReject:
		s.notifier.Notify(ctx, rentalNotification(r, r.RenterID, domain.NotificationRentalDecision,
			"Rental rejected", "The owner rejected your rental request. Your payment was refunded."))
	case domain.RentalActionCancel:
		s.notifier.Notify(ctx, rentalNotification(r, r.OwnerID, domain.NotificationRentalDecision,
			"Rental cancelled", "The renter cancelled the rental request."))
	case domain.RentalActionConfirmPickup:
		s.notifier.Notify(ctx, rentalNotification(r, r.OwnerID, domain.NotificationPickup,
			"Item picked up", "The rental price has been paid to your wallet."))
	case domain.RentalActionConfirmReturn:
		s.notifier.Notify(ctx, rentalNotification(r, r.RenterID, domain.NotificationReturn,
			"Item returned", fmt.Sprintf("Your insurance was released. Late fee charged: %d.", r.LateFee)))
	}
}

func rentalNotification(r *domain.RentalRequest, userID string, typ domain.NotificationType, title, message string) domain.Notification {
	return domain.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Attributes: map[string]string{
			"rental_id": r.ID,
			"status":    string(r.Status),
		},
	}
}
