package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rently-backend/internal/domain"
	"rently-backend/internal/escrow"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

type issueReportService struct {
	store    repository.Store
	settle   *settler
	policy   RentalPolicy
	evidence EvidenceChecker
	notifier Notifier
	now      Clock
}

func NewIssueReportService(store repository.Store, calc *escrow.Calculator, policy RentalPolicy, opts ...Option) IssueReportService {
	o := buildOptions(opts)
	return &issueReportService{
		store:    store,
		settle:   &settler{ledger: &ledgerOps{now: o.now}, calc: calc},
		policy:   policy,
		evidence: o.evidence,
		notifier: o.notifier,
		now:      o.now,
	}
}

// ReportIssue freezes the rental in a disputed state until an admin resolves
// the report. A pickup issue is raised by the renter before pickup, a return
// issue by the owner at return.
func (s *issueReportService) ReportIssue(ctx context.Context, rentalID, actorID string, input domain.IssueReportInput) (*domain.IssueReport, error) {
	logger.EnterMethod("issueReportService.ReportIssue", "rentalID", rentalID, "actorID", actorID, "type", input.Type)

	if err := s.validateInput(ctx, input); err != nil {
		logger.ExitMethodWithError("issueReportService.ReportIssue", err)
		return nil, err
	}

	var (
		report *domain.IssueReport
		rental *domain.RentalRequest
		from   domain.RentalStatus
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		rental, err = tx.Rentals().GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		from = rental.Status
		now := s.now()

		report = &domain.IssueReport{
			ID:           uuid.NewString(),
			RentalID:     rental.ID,
			Type:         input.Type,
			Description:  input.Description,
			EvidenceKeys: input.EvidenceKeys,
			SubmittedBy:  actorID,
			Status:       domain.IssueStatusPending,
			CreatedAt:    now,
		}

		switch input.Type {
		case domain.IssueTypePickup:
			if actorID != rental.RenterID {
				return domain.Errorf(domain.CodePermissionDenied, "only the renter can report a pickup issue on rental %s", rental.ID)
			}
			if err := expectStatus(rental, domain.RentalStatusAccepted); err != nil {
				return err
			}
			if now.After(rental.StartDate) {
				return domain.Errorf(domain.CodeWindowExpired, "pickup window of rental %s is closed", rental.ID)
			}
			reason := domain.CancelReasonItemIssue
			rental.Status = domain.RentalStatusCancelled
			rental.CancelReason = &reason
			report.Against = rental.OwnerID

		case domain.IssueTypeReturn:
			if actorID != rental.OwnerID {
				return domain.Errorf(domain.CodePermissionDenied, "only the owner can report a return issue on rental %s", rental.ID)
			}
			if err := expectStatus(rental, domain.RentalStatusActive); err != nil {
				return err
			}
			if now.After(rental.EndDate.Add(s.policy.ReturnGrace)) {
				return domain.Errorf(domain.CodeWindowExpired, "return grace period of rental %s is over", rental.ID)
			}
			severity := *input.Severity
			reason := domain.EndReasonDamaged
			rental.Status = domain.RentalStatusEnded
			rental.EndReason = &reason
			rental.LateDays = escrow.LateDays(rental.EndDate, now)
			rental.ReturnedAt = &now
			report.Severity = &severity
			report.Against = rental.RenterID
		}

		rental.PaymentStatus = domain.PaymentStatusDisputed
		rental.UpdatedAt = now
		if err := tx.Rentals().Update(ctx, rental); err != nil {
			return err
		}
		return tx.IssueReports().Create(ctx, report)
	})
	if err != nil {
		logger.ExitMethodWithError("issueReportService.ReportIssue", err, "rentalID", rentalID)
		return nil, err
	}

	logger.Transition(ctx, rental.ID, string(from), string(rental.Status), nil, "issue_report_id", report.ID, "issue_type", report.Type)
	s.notifier.Notify(ctx, domain.Notification{
		UserID:  report.Against,
		Type:    domain.NotificationIssueReported,
		Title:   "Issue reported",
		Message: fmt.Sprintf("An issue was reported on rental %s and is waiting for review.", rental.ID),
		Attributes: map[string]string{
			"rental_id":       rental.ID,
			"issue_report_id": report.ID,
		},
	})
	logger.ExitMethod("issueReportService.ReportIssue", "reportID", report.ID)
	return report, nil
}

func (s *issueReportService) validateInput(ctx context.Context, input domain.IssueReportInput) error {
	switch input.Type {
	case domain.IssueTypePickup:
	case domain.IssueTypeReturn:
		if input.Severity == nil || !input.Severity.Valid() {
			return domain.Errorf(domain.CodeInvalidArgument, "a return issue needs a severity of mild, moderate or severe")
		}
	default:
		return domain.Errorf(domain.CodeInvalidArgument, "unknown issue type %q", input.Type)
	}
	if input.Description == "" {
		return domain.Errorf(domain.CodeInvalidArgument, "description is required")
	}
	if s.evidence == nil {
		return nil
	}
	for _, key := range input.EvidenceKeys {
		exists, err := s.evidence.FileExists(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			return domain.Errorf(domain.CodeInvalidArgument, "evidence %s was not uploaded", key)
		}
	}
	return nil
}

// ResolveIssueReport settles a disputed rental. Approving a pickup issue
// refunds the renter in full and approving a return issue splits the
// insurance by severity. Rejecting settles the rental as if no issue had been
// reported: a no-show for pickup issues and a normal return otherwise.
func (s *issueReportService) ResolveIssueReport(ctx context.Context, actor domain.Actor, reportID string, decision domain.IssueDecision) (*domain.IssueReport, error) {
	logger.EnterMethod("issueReportService.ResolveIssueReport", "reportID", reportID, "decision", decision, "actorID", actor.UserID)

	if !actor.IsAdmin() {
		return nil, domain.Errorf(domain.CodePermissionDenied, "only an admin can resolve issue reports")
	}
	if decision != domain.IssueDecisionApprove && decision != domain.IssueDecisionReject {
		return nil, domain.Errorf(domain.CodeInvalidArgument, "unknown decision %q", decision)
	}

	var (
		report *domain.IssueReport
		rental *domain.RentalRequest
		ids    entryIDs
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		report, err = tx.IssueReports().GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		if report.Status != domain.IssueStatusPending {
			return domain.Errorf(domain.CodeAlreadyProcessed, "issue report %s is already %s", report.ID, report.Status)
		}
		rental, err = tx.Rentals().GetForUpdate(ctx, report.RentalID)
		if err != nil {
			return err
		}
		p, err := s.settle.resolveParties(ctx, tx, rental)
		if err != nil {
			return err
		}

		now := s.now()
		ids, err = s.settleReport(ctx, tx, p, rental, report, decision)
		if err != nil {
			return err
		}

		rental.ClosedAt = &now
		rental.UpdatedAt = now
		if err := tx.Rentals().Update(ctx, rental); err != nil {
			return err
		}

		report.Status = domain.IssueStatusRejected
		if decision == domain.IssueDecisionApprove {
			report.Status = domain.IssueStatusApproved
		}
		resolvedBy := actor.UserID
		report.ResolvedBy = &resolvedBy
		report.ResolvedAt = &now
		return tx.IssueReports().Update(ctx, report)
	})
	if err != nil {
		logger.ExitMethodWithError("issueReportService.ResolveIssueReport", err, "reportID", reportID)
		return nil, err
	}

	logger.Transition(ctx, rental.ID, string(rental.Status), string(rental.Status), ids,
		"issue_report_id", report.ID, "decision", decision, "payment_status", rental.PaymentStatus)
	for _, userID := range []string{rental.RenterID, rental.OwnerID} {
		s.notifier.Notify(ctx, domain.Notification{
			UserID:  userID,
			Type:    domain.NotificationIssueResolved,
			Title:   "Issue report resolved",
			Message: fmt.Sprintf("The issue report on rental %s was %s.", rental.ID, report.Status),
			Attributes: map[string]string{
				"rental_id":       rental.ID,
				"issue_report_id": report.ID,
				"decision":        string(decision),
			},
		})
	}
	logger.ExitMethod("issueReportService.ResolveIssueReport", "reportID", reportID, "status", report.Status)
	return report, nil
}

func (s *issueReportService) settleReport(ctx context.Context, tx repository.Tx, p *parties, r *domain.RentalRequest, report *domain.IssueReport, decision domain.IssueDecision) (entryIDs, error) {
	approve := decision == domain.IssueDecisionApprove

	if report.Type == domain.IssueTypePickup {
		if approve {
			r.PaymentStatus = domain.PaymentStatusRefunded
			return s.settle.refundAll(ctx, tx, p, r, domain.PurposeRentalCancelItemIssueRefund)
		}
		r.PaymentStatus = domain.PaymentStatusSettled
		return s.settle.settleNoShow(ctx, tx, p, r, domain.PurposeRentalCancelRefund)
	}

	lateFee := escrow.LateFee(r.RentalType, r.RentalQuantity, r.RentalPrice, r.LateDays)
	var (
		collected int64
		ids       entryIDs
		err       error
	)
	if approve {
		collected, ids, err = s.settle.settleDamage(ctx, tx, p, r, *report.Severity, lateFee)
	} else {
		collected, ids, err = s.settle.settleReturn(ctx, tx, p, r, lateFee)
	}
	if err != nil {
		return nil, err
	}
	r.LateFee = collected
	r.PaymentStatus = domain.PaymentStatusSettled
	return ids, nil
}

func (s *issueReportService) ListIssueReports(ctx context.Context, actor domain.Actor, rentalID string) ([]domain.IssueReport, error) {
	var reports []domain.IssueReport
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		rental, err := tx.Rentals().GetByID(ctx, rentalID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && actor.UserID != rental.RenterID && actor.UserID != rental.OwnerID {
			return domain.Errorf(domain.CodePermissionDenied, "user %s is not a participant of rental %s", actor.UserID, rentalID)
		}
		reports, err = tx.IssueReports().ListByRental(ctx, rentalID)
		return err
	})
	return reports, err
}
