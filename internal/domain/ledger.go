package domain

import "time"

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusConfirmed EntryStatus = "confirmed"
	EntryStatusFailed    EntryStatus = "failed"
)

type EntryPurpose string

const (
	PurposeRentalLock                  EntryPurpose = "RENTAL_LOCK"
	PurposeRentalRejectRefund          EntryPurpose = "RENTAL_REJECT_REFUND"
	PurposeRentalOutdatedRefund        EntryPurpose = "RENTAL_OUTDATED_REFUND"
	PurposeRentalCancelRefund          EntryPurpose = "RENTAL_CANCEL_REFUND"
	PurposeRentalPayout                EntryPurpose = "RENTAL_PAYOUT"
	PurposePlatformCommission          EntryPurpose = "PLATFORM_COMMISSION"
	PurposeRentalInsuranceRelease      EntryPurpose = "RENTAL_INSURANCE_RELEASE"
	PurposeRentalLateFee               EntryPurpose = "RENTAL_LATE_FEE"
	PurposeRentalNoShowPenalty         EntryPurpose = "RENTAL_NO_SHOW_PENALTY"
	PurposeRentalNoShowRefund          EntryPurpose = "RENTAL_NO_SHOW_REFUND"
	PurposeRentalInsurancePayoutFull   EntryPurpose = "RENTAL_INSURANCE_PAYOUT_OWNER_FULL"
	PurposeRentalInsurancePayout       EntryPurpose = "RENTAL_INSURANCE_PAYOUT_OWNER"
	PurposeRentalInsuranceRefund       EntryPurpose = "RENTAL_INSURANCE_REFUND_PARTIAL"
	PurposeRentalCancelItemIssueRefund EntryPurpose = "RENTAL_CANCEL_ITEM_ISSUE_REFUND"
	PurposeTopUpStripe                 EntryPurpose = "TOPUP_STRIPE"
	PurposeTopUpBillPay                EntryPurpose = "TOPUP_BILLPAY"
	PurposeWithdrawalHold              EntryPurpose = "WITHDRAWAL_HOLD"
	PurposeWithdrawalPayoutBank        EntryPurpose = "WITHDRAWAL_PAYOUT_BANK"
	PurposeWithdrawalPayoutExchange    EntryPurpose = "WITHDRAWAL_PAYOUT_EXCHANGE"
	PurposeWithdrawalRejectReturn      EntryPurpose = "WITHDRAWAL_REJECT_RETURN"
	PurposeWithdrawalExpiredReturn     EntryPurpose = "WITHDRAWAL_EXPIRED_RETURN"
)

// LedgerEntry records one movement between two wallets. A nil endpoint is the
// external boundary: nil From is an inflow (top-up), nil To an outflow (payout).
type LedgerEntry struct {
	ID            string       `json:"id"`
	FromWalletID  *string      `json:"from_wallet_id,omitempty"`
	ToWalletID    *string      `json:"to_wallet_id,omitempty"`
	Amount        int64        `json:"amount"`
	Purpose       EntryPurpose `json:"purpose"`
	Status        EntryStatus  `json:"status"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (e *LedgerEntry) IsFinal() bool {
	return e.Status == EntryStatusConfirmed || e.Status == EntryStatusFailed
}
