package domain

import "time"

type WalletKind string

const (
	WalletKindUser    WalletKind = "USER"
	WalletKindHolding WalletKind = "HOLDING"
	WalletKindAdmin   WalletKind = "ADMIN"
)

type Wallet struct {
	ID        string     `json:"id"`
	UserID    *string    `json:"user_id,omitempty"` // nil for the platform ADMIN wallet
	Kind      WalletKind `json:"kind"`
	Balance   int64      `json:"balance"` // minor units, never negative
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// WalletPair is the spendable and escrow wallet of one user.
type WalletPair struct {
	User    *Wallet `json:"user"`
	Holding *Wallet `json:"holding"`
}
