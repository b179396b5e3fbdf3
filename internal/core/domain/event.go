package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is the routing key of a published domain event.
type EventType string

const (
	EventPurchaseCompleted EventType = "purchase.completed"
	EventWalletToppedUp    EventType = "wallet.topped_up"
)

// PurchaseCompletedEvent is emitted after a purchase commits.
type PurchaseCompletedEvent struct {
	PurchaseID   uuid.UUID       `json:"purchase_id"`
	UserID       uuid.UUID       `json:"user_id"`
	InstrumentID string          `json:"bond_id"`
	Amount       decimal.Decimal `json:"amount"`
	Tokens       decimal.Decimal `json:"tokens"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// WalletToppedUpEvent is emitted after a credit commits.
type WalletToppedUpEvent struct {
	UserID     uuid.UUID       `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}
