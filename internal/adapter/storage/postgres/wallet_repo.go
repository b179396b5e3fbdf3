package postgres

import (
	"context"
	"errors"
	"fmt"

	"fractional-bonds/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a wallet inside the registration transaction.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, query, w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt); err != nil {
		return mapInsertErr("insert wallet", err)
	}
	return nil
}

// GetByUserID fetches a wallet (non-locking read).
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, userID), "get wallet")
}

// Credit adds amount in a single statement.
func (r *WalletRepo) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING user_id, balance, created_at, updated_at`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, amount, userID), "credit wallet")
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == numericOutOfRange {
		return nil, fmt.Errorf("credit wallet: %w", domain.ErrAmountOutOfRange)
	}
	return w, err
}

// Debit subtracts amount only when the balance covers it. The check and the
// decrement are one statement, so concurrent debits serialize on the row.
// This MUST be called within a transaction.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	query := `UPDATE wallets SET balance = balance - $1, updated_at = now()
		WHERE user_id = $2 AND balance >= $1
		RETURNING user_id, balance, created_at, updated_at`

	return scanWallet(tx.QueryRow(ctx, query, amount, userID), "debit wallet")
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
