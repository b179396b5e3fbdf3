package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseType is the kind of ledger entry. Only buys exist today.
type PurchaseType string

const (
	PurchaseTypeBuy PurchaseType = "buy"
)

// PurchaseRecord is an immutable transaction log entry created by a buy.
// The log, not any cached view, is the source of truth for holdings.
type PurchaseRecord struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	InstrumentID   string          `json:"bond_id"`
	Country        string          `json:"bond_country"` // snapshot at purchase time
	Amount         decimal.Decimal `json:"amount"`
	TokensReceived decimal.Decimal `json:"tokens_received"`
	Type           PurchaseType    `json:"transaction_type"`
	CreatedAt      time.Time       `json:"timestamp"`
}

// NewPurchase builds a buy record for inst. Tokens are pegged 1:1 to the amount.
func NewPurchase(userID uuid.UUID, inst *Instrument, amount decimal.Decimal, at time.Time) *PurchaseRecord {
	return &PurchaseRecord{
		ID:             uuid.New(),
		UserID:         userID,
		InstrumentID:   inst.ID,
		Country:        inst.Country,
		Amount:         amount,
		TokensReceived: amount,
		Type:           PurchaseTypeBuy,
		CreatedAt:      at.UTC(),
	}
}

// IsBuy reports whether the record contributes to holdings.
func (p *PurchaseRecord) IsBuy() bool {
	return p.Type == PurchaseTypeBuy
}
