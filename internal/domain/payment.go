package domain

import "time"

type TopUpMethod string

const (
	TopUpMethodStripe  TopUpMethod = "stripe"
	TopUpMethodBillPay TopUpMethod = "billpay"
)

type TopUpStatus string

const (
	TopUpStatusPending   TopUpStatus = "pending"
	TopUpStatusConfirmed TopUpStatus = "confirmed"
	TopUpStatusFailed    TopUpStatus = "failed"
	TopUpStatusExpired   TopUpStatus = "expired"
)

// TopUp tracks a provider payment behind one pending ledger entry.
type TopUp struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	EntryID   string      `json:"entry_id"`
	Amount    int64       `json:"amount"`
	Method    TopUpMethod `json:"method"`
	Reference string      `json:"reference"`
	Status    TopUpStatus `json:"status"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type WithdrawalMethod string

const (
	WithdrawalMethodBank     WithdrawalMethod = "bank"
	WithdrawalMethodExchange WithdrawalMethod = "exchange"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
	WithdrawalStatusExpired  WithdrawalStatus = "expired"
)

// WithdrawalDestination carries the bank fields or the exchange pickup fields
// depending on the method.
type WithdrawalDestination struct {
	IBAN              string `json:"iban,omitempty"`
	BankName          string `json:"bank_name,omitempty"`
	AccountHolderName string `json:"account_holder_name,omitempty"`
	PickupName        string `json:"pickup_name,omitempty"`
	PickupPhone       string `json:"pickup_phone,omitempty"`
	PickupIDNumber    string `json:"pickup_id_number,omitempty"`
}

type Withdrawal struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Amount          int64                 `json:"amount"`
	Method          WithdrawalMethod      `json:"method"`
	Destination     WithdrawalDestination `json:"destination"`
	ReferenceNumber string                `json:"reference_number,omitempty"`
	Status          WithdrawalStatus      `json:"status"`
	HoldEntryID     string                `json:"hold_entry_id"`
	ProcessedBy     *string               `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time            `json:"processed_at,omitempty"`
	ExpiresAt       time.Time             `json:"expires_at"`
	CreatedAt       time.Time             `json:"created_at"`
}
