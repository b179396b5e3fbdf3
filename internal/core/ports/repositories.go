package ports

import (
	"context"

	"fractional-bonds/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Balance changes are single conditional statements so concurrent
// debits can never take a balance below zero.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// Credit adds amount and returns the updated wallet, or nil if the user has none.
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	// Debit subtracts amount only if the balance covers it. A nil wallet means
	// the condition failed (insufficient balance or no wallet) and nothing changed.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
}

// InstrumentRepository defines read access to the bond catalog plus seeding.
type InstrumentRepository interface {
	List(ctx context.Context, limit int) ([]domain.Instrument, error)
	GetByID(ctx context.Context, id string) (*domain.Instrument, error)
	Count(ctx context.Context) (int64, error)
	// InsertMissing inserts instruments whose id is not present yet and returns how many were written.
	InsertMissing(ctx context.Context, instruments []domain.Instrument) (int64, error)
}

// PurchaseRepository is the append-only transaction log.
type PurchaseRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.PurchaseRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRecord, error)
	List(ctx context.Context, params PurchaseListParams) ([]domain.PurchaseRecord, error)
}

// PurchaseListParams filters and orders a user's purchase records.
type PurchaseListParams struct {
	UserID      uuid.UUID
	Type        *domain.PurchaseType
	NewestFirst bool
	Limit       int // 0 = no limit
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
