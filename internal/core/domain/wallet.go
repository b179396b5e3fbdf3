package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the custodial USDC balance of exactly one user.
// Balance never goes below zero; the storage layer enforces it on debit.
type Wallet struct {
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AmountScale is the number of decimal places stored for money.
const AmountScale = 6

// MaxAmount bounds every stored amount and balance (NUMERIC(20, 6)).
var MaxAmount = decimal.New(1, 14)

// AmountInRange reports whether a can be stored without rounding or overflow.
func AmountInRange(a decimal.Decimal) bool {
	return a.Equal(a.Truncate(AmountScale)) && a.Abs().LessThan(MaxAmount)
}
