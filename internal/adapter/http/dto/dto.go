package dto

import (
	"time"

	"fractional-bonds/internal/core/domain"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72" sanitize:"-"`
	Name     string `json:"name" binding:"max=100"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// TopUpRequest is the request body for a wallet top-up. Amount accepts a
// JSON number or a quoted decimal string.
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BuyRequest is the request body for a bond purchase.
type BuyRequest struct {
	BondID string          `json:"bond_id" binding:"required,instrument_id"`
	Amount decimal.Decimal `json:"amount"`
}

// UserResponse is the public profile of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// InstrumentResponse is a catalog entry.
type InstrumentResponse struct {
	ID              string  `json:"id"`
	Country         string  `json:"country"`
	CountryCode     string  `json:"country_code"`
	YieldPercentage float64 `json:"yield_percentage"`
	MaturityDate    string  `json:"maturity_date"`
	MinimumEntry    float64 `json:"minimum_entry"`
	FlagURL         string  `json:"flag_url"`
	Description     string  `json:"description"`
	Issuer          string  `json:"issuer"`
}

// PurchaseResponse is a transaction log entry.
type PurchaseResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	BondID          string  `json:"bond_id"`
	BondCountry     string  `json:"bond_country"`
	Amount          float64 `json:"amount"`
	TokensReceived  float64 `json:"tokens_received"`
	TransactionType string  `json:"transaction_type"`
	Timestamp       string  `json:"timestamp"`
}

// WalletResponse is the response for GET /wallet.
type WalletResponse struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	USDCBalance float64 `json:"usdc_balance"`
	Display     string  `json:"display"`
}

// TopUpResponse is the response for POST /wallet/topup.
type TopUpResponse struct {
	Message    string  `json:"message"`
	NewBalance float64 `json:"new_balance"`
}

// HoldingResponse is one position in a portfolio.
type HoldingResponse struct {
	BondID          string  `json:"bond_id"`
	Country         string  `json:"country"`
	Tokens          float64 `json:"tokens"`
	Invested        float64 `json:"invested"`
	CurrentValue    float64 `json:"current_value"`
	YieldPercentage float64 `json:"yield_percentage"`
}

// EarningsPointResponse is one day of the earnings series.
type EarningsPointResponse struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PortfolioResponse is the response for GET /portfolio.
type PortfolioResponse struct {
	TotalValue      float64                 `json:"total_value"`
	TotalTokens     float64                 `json:"total_tokens"`
	Holdings        []HoldingResponse       `json:"holdings"`
	EarningsHistory []EarningsPointResponse `json:"earnings_history"`
}

// ---- Mappers ----

func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToInstrumentResponse(i *domain.Instrument) InstrumentResponse {
	return InstrumentResponse{
		ID:              i.ID,
		Country:         i.Country,
		CountryCode:     i.CountryCode,
		YieldPercentage: i.YieldPercentage.InexactFloat64(),
		MaturityDate:    i.MaturityDate,
		MinimumEntry:    i.MinimumEntry.InexactFloat64(),
		FlagURL:         i.FlagURL,
		Description:     i.Description,
		Issuer:          i.Issuer,
	}
}

func ToInstrumentList(items []domain.Instrument) []InstrumentResponse {
	out := make([]InstrumentResponse, 0, len(items))
	for i := range items {
		out = append(out, ToInstrumentResponse(&items[i]))
	}
	return out
}

func ToPurchaseResponse(p *domain.PurchaseRecord) PurchaseResponse {
	return PurchaseResponse{
		ID:              p.ID.String(),
		UserID:          p.UserID.String(),
		BondID:          p.InstrumentID,
		BondCountry:     p.Country,
		Amount:          p.Amount.InexactFloat64(),
		TokensReceived:  p.TokensReceived.InexactFloat64(),
		TransactionType: string(p.Type),
		Timestamp:       p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func ToPurchaseList(items []domain.PurchaseRecord) []PurchaseResponse {
	out := make([]PurchaseResponse, 0, len(items))
	for i := range items {
		out = append(out, ToPurchaseResponse(&items[i]))
	}
	return out
}

func ToWalletResponse(w *domain.Wallet, email string) WalletResponse {
	return WalletResponse{
		UserID:      w.UserID.String(),
		Email:       email,
		USDCBalance: w.Balance.InexactFloat64(),
		Display:     FormatUSD(w.Balance),
	}
}

func ToPortfolioResponse(p *domain.Portfolio) PortfolioResponse {
	holdings := make([]HoldingResponse, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		holdings = append(holdings, HoldingResponse{
			BondID:          h.InstrumentID,
			Country:         h.Country,
			Tokens:          h.Tokens.InexactFloat64(),
			Invested:        h.Invested.InexactFloat64(),
			CurrentValue:    h.CurrentValue.InexactFloat64(),
			YieldPercentage: h.YieldPercentage.InexactFloat64(),
		})
	}
	history := make([]EarningsPointResponse, 0, len(p.EarningsHistory))
	for _, pt := range p.EarningsHistory {
		history = append(history, EarningsPointResponse{Date: pt.Date, Value: pt.Value.InexactFloat64()})
	}
	return PortfolioResponse{
		TotalValue:      p.TotalValue.InexactFloat64(),
		TotalTokens:     p.TotalTokens.InexactFloat64(),
		Holdings:        holdings,
		EarningsHistory: history,
	}
}

// FormatUSD renders an amount rounded to cents, e.g. "$1,234.50".
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}
