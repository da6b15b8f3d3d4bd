package wallet

import "time"

// Transaction kinds recorded against a wallet.
const (
	KindRecharge  = "recharge"
	KindDeduction = "deduction"
)

// Wallet holds a user's prepaid balance, metered down during active sessions.
type Wallet struct {
	UserID    string    `json:"userId"`
	Balance   float64   `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transaction is one append-only ledger entry against a wallet.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Amount    float64   `json:"amount"`
	SessionID string    `json:"sessionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
