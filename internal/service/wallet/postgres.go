package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astrovoice/kundli/backend/internal/model/wallet"
)

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool          *pgxpool.Pool
	signupBalance float64
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string, signupBalance float64) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, signupBalance: signupBalance}, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Migrate creates the wallet tables when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id TEXT PRIMARY KEY,
			balance DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS wallet_transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_id ON wallet_transactions(user_id);
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (wallet.Wallet, error) {
	if userID == "" {
		return wallet.Wallet{}, ErrUserRequired
	}

	var w wallet.Wallet
	err := s.pool.QueryRow(ctx,
		`INSERT INTO wallets (user_id, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING user_id, balance, updated_at`,
		userID, s.signupBalance,
	).Scan(&w.UserID, &w.Balance, &w.UpdatedAt)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) Credit(ctx context.Context, userID string, amount float64) (wallet.Wallet, error) {
	if userID == "" {
		return wallet.Wallet{}, ErrUserRequired
	}
	if amount <= 0 {
		return wallet.Wallet{}, ErrInvalidAmount
	}

	var w wallet.Wallet
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO wallets (user_id, balance, updated_at)
			 VALUES ($1, $2 + $3, CURRENT_TIMESTAMP)
			 ON CONFLICT (user_id) DO UPDATE
			 SET balance = wallets.balance + $3, updated_at = CURRENT_TIMESTAMP
			 RETURNING user_id, balance, updated_at`,
			userID, s.signupBalance, amount,
		).Scan(&w.UserID, &w.Balance, &w.UpdatedAt); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO wallet_transactions (id, user_id, kind, amount) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), userID, wallet.KindRecharge, amount,
		)
		return err
	})
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("credit wallet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) Debit(ctx context.Context, userID string, amount float64, sessionID string) (float64, wallet.Wallet, error) {
	if userID == "" {
		return 0, wallet.Wallet{}, ErrUserRequired
	}
	if amount <= 0 {
		return 0, wallet.Wallet{}, ErrInvalidAmount
	}

	var (
		w       wallet.Wallet
		debited float64
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var balance float64
		err := tx.QueryRow(ctx,
			`SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			balance = s.signupBalance
			if _, err := tx.Exec(ctx,
				`INSERT INTO wallets (user_id, balance) VALUES ($1, $2)`,
				userID, balance,
			); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		debited = amount
		if debited > balance {
			debited = balance
		}

		if err := tx.QueryRow(ctx,
			`UPDATE wallets SET balance = balance - $2, updated_at = CURRENT_TIMESTAMP
			 WHERE user_id = $1
			 RETURNING user_id, balance, updated_at`,
			userID, debited,
		).Scan(&w.UserID, &w.Balance, &w.UpdatedAt); err != nil {
			return err
		}

		if debited == 0 {
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO wallet_transactions (id, user_id, kind, amount, session_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), userID, wallet.KindDeduction, debited, sessionID,
		)
		return err
	})
	if err != nil {
		return 0, wallet.Wallet{}, fmt.Errorf("debit wallet: %w", err)
	}
	return debited, w, nil
}

func (s *PostgresStore) Transactions(ctx context.Context, userID string) ([]wallet.Transaction, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, amount, COALESCE(session_id, ''), created_at
		 FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var entries []wallet.Transaction
	for rows.Next() {
		var tr wallet.Transaction
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.Kind, &tr.Amount, &tr.SessionID, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, tr)
	}
	return entries, rows.Err()
}
