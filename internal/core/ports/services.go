package ports

import (
	"context"
	"errors"
	"time"

	"fractional-bonds/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// ErrTokenExpired is wrapped by TokenService.Validate when the token has expired.
var ErrTokenExpired = errors.New("token expired")

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher emits domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType domain.EventType, payload any) error
}

// --- Service Ports (Business Logic) ---

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// AuthResult is returned by both register and login.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// CatalogService exposes the bond catalog.
type CatalogService interface {
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
	GetInstrument(ctx context.Context, id string) (*domain.Instrument, error)
	Seed(ctx context.Context) (int64, error)
}

// WalletService exposes the wallet ledger and the user's transaction log.
type WalletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error)
}

// PurchaseService orchestrates buys.
type PurchaseService interface {
	Buy(ctx context.Context, req BuyRequest) (*domain.PurchaseRecord, error)
}

// BuyRequest holds validated input for a purchase.
type BuyRequest struct {
	UserID         uuid.UUID
	InstrumentID   string
	Amount         decimal.Decimal
	IdempotencyKey string // optional
}

// PortfolioService aggregates holdings from the transaction log.
type PortfolioService interface {
	ComputePortfolio(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error)
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
