package wallet

import (
	"context"
	"errors"

	"github.com/astrovoice/kundli/backend/internal/model/wallet"
)

var (
	ErrUserRequired  = errors.New("user id is required")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Store abstracts wallet persistence so the service can run against the
// in-memory store or Postgres.
type Store interface {
	// Get returns the wallet for userID, creating it with the signup
	// balance on first access.
	Get(ctx context.Context, userID string) (wallet.Wallet, error)
	// Credit adds amount to the wallet and records a recharge transaction.
	Credit(ctx context.Context, userID string, amount float64) (wallet.Wallet, error)
	// Debit subtracts up to amount, clamped at a floor of zero, records a
	// deduction transaction for the amount actually taken, and returns it
	// alongside the updated wallet.
	Debit(ctx context.Context, userID string, amount float64, sessionID string) (float64, wallet.Wallet, error)
	// Transactions returns the append-only ledger for userID, oldest first.
	Transactions(ctx context.Context, userID string) ([]wallet.Transaction, error)
}
