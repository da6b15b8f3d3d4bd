package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astrovoice/kundli/backend/internal/model/wallet"
)

// MemoryStore implements Store with in-process maps. Used when no
// DATABASE_URL is configured and throughout the test suite.
type MemoryStore struct {
	mu            sync.Mutex
	signupBalance float64
	wallets       map[string]wallet.Wallet
	ledger        map[string][]wallet.Transaction
}

// NewMemoryStore returns an empty MemoryStore. New wallets start with
// signupBalance.
func NewMemoryStore(signupBalance float64) *MemoryStore {
	return &MemoryStore{
		signupBalance: signupBalance,
		wallets:       make(map[string]wallet.Wallet),
		ledger:        make(map[string][]wallet.Transaction),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (wallet.Wallet, error) {
	if userID == "" {
		return wallet.Wallet{}, ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID), nil
}

func (s *MemoryStore) Credit(_ context.Context, userID string, amount float64) (wallet.Wallet, error) {
	if userID == "" {
		return wallet.Wallet{}, ErrUserRequired
	}
	if amount <= 0 {
		return wallet.Wallet{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getLocked(userID)
	w.Balance += amount
	w.UpdatedAt = time.Now().UTC()
	s.wallets[userID] = w

	s.ledger[userID] = append(s.ledger[userID], wallet.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      wallet.KindRecharge,
		Amount:    amount,
		CreatedAt: w.UpdatedAt,
	})

	return w, nil
}

func (s *MemoryStore) Debit(_ context.Context, userID string, amount float64, sessionID string) (float64, wallet.Wallet, error) {
	if userID == "" {
		return 0, wallet.Wallet{}, ErrUserRequired
	}
	if amount <= 0 {
		return 0, wallet.Wallet{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getLocked(userID)
	debited := amount
	if debited > w.Balance {
		debited = w.Balance
	}
	if debited == 0 {
		return 0, w, nil
	}

	w.Balance -= debited
	w.UpdatedAt = time.Now().UTC()
	s.wallets[userID] = w

	s.ledger[userID] = append(s.ledger[userID], wallet.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      wallet.KindDeduction,
		Amount:    debited,
		SessionID: sessionID,
		CreatedAt: w.UpdatedAt,
	})

	return debited, w, nil
}

func (s *MemoryStore) Transactions(_ context.Context, userID string) ([]wallet.Transaction, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.ledger[userID]
	copied := make([]wallet.Transaction, len(entries))
	copy(copied, entries)
	return copied, nil
}

func (s *MemoryStore) getLocked(userID string) wallet.Wallet {
	w, ok := s.wallets[userID]
	if !ok {
		w = wallet.Wallet{
			UserID:    userID,
			Balance:   s.signupBalance,
			UpdatedAt: time.Now().UTC(),
		}
		s.wallets[userID] = w
	}
	return w
}
