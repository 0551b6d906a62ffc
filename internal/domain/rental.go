package domain

import "time"

type RentalStatus string

const (
	RentalStatusPending   RentalStatus = "pending"
	RentalStatusAccepted  RentalStatus = "accepted"
	RentalStatusActive    RentalStatus = "active"
	RentalStatusEnded     RentalStatus = "ended"
	RentalStatusCancelled RentalStatus = "cancelled"
	RentalStatusRejected  RentalStatus = "rejected"
	RentalStatusOutdated  RentalStatus = "outdated"
)

// IsTerminal reports whether no further transition can leave the status.
func (s RentalStatus) IsTerminal() bool {
	switch s {
	case RentalStatusEnded, RentalStatusCancelled, RentalStatusRejected, RentalStatusOutdated:
		return true
	}
	return false
}

func (s RentalStatus) Valid() bool {
	switch s {
	case RentalStatusPending, RentalStatusAccepted, RentalStatusActive:
		return true
	}
	return s.IsTerminal()
}

type PaymentStatus string

const (
	PaymentStatusLocked   PaymentStatus = "locked"
	PaymentStatusReleased PaymentStatus = "released"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusDisputed PaymentStatus = "disputed"
	PaymentStatusSettled  PaymentStatus = "settled"
)

type RentalType string

const (
	RentalTypeDaily  RentalType = "daily"
	RentalTypeWeekly RentalType = "weekly"
)

func (t RentalType) Valid() bool {
	return t == RentalTypeDaily || t == RentalTypeWeekly
}

type EndReason string

const (
	EndReasonNormal        EndReason = "normal"
	EndReasonLate          EndReason = "late"
	EndReasonDamaged       EndReason = "damaged"
	EndReasonNeverReturned EndReason = "never_returned"
)

type CancelReason string

const (
	CancelReasonNoShow          CancelReason = "no_show"
	CancelReasonItemIssue       CancelReason = "item_issue"
	CancelReasonRenterCancelled CancelReason = "renter_cancelled"
)

// RentalAction is a user-triggered transition.
type RentalAction string

const (
	RentalActionAccept        RentalAction = "accept"
	RentalActionReject        RentalAction = "reject"
	RentalActionCancel        RentalAction = "cancel"
	RentalActionConfirmPickup RentalAction = "pickup"
	RentalActionConfirmReturn RentalAction = "return"
)

// InsuranceTerms is snapshotted at creation; Amount = round(OriginalValue * Rate).
type InsuranceTerms struct {
	OriginalValue int64   `json:"original_value"`
	Rate          float64 `json:"rate"`
	Amount        int64   `json:"amount"`
}

type RentalRequest struct {
	ID             string         `json:"id"`
	ItemID         string         `json:"item_id"`
	OwnerID        string         `json:"owner_id"`
	RenterID       string         `json:"renter_id"`
	RentalType     RentalType     `json:"rental_type"`
	RentalQuantity int            `json:"rental_quantity"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	RentalPrice    int64          `json:"rental_price"`
	Insurance      InsuranceTerms `json:"insurance"`
	TotalPrice     int64          `json:"total_price"`
	Status         RentalStatus   `json:"status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	PickupToken    string         `json:"-"`
	ReturnToken    string         `json:"-"`
	LateDays       int            `json:"late_days"`
	LateFee        int64          `json:"late_fee"`
	EndReason      *EndReason     `json:"end_reason,omitempty"`
	CancelReason   *CancelReason  `json:"cancel_reason,omitempty"`
	AcceptedAt     *time.Time     `json:"accepted_at,omitempty"`
	PickedUpAt     *time.Time     `json:"picked_up_at,omitempty"`
	ReturnedAt     *time.Time     `json:"returned_at,omitempty"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RentalTerms is what a renter submits with a new request.
type RentalTerms struct {
	OwnerID        string     `json:"owner_id"`
	RentalType     RentalType `json:"rental_type"`
	RentalQuantity int        `json:"rental_quantity"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	RentalPrice    int64      `json:"rental_price"`
	OriginalValue  int64      `json:"original_value"`
	InsuranceRate  float64    `json:"insurance_rate"`
}

type RentalFilter struct {
	RenterID string
	OwnerID  string
	Status   RentalStatus
	Page     int32
	PageSize int32
}
