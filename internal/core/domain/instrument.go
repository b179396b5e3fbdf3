package domain

import "github.com/shopspring/decimal"

// Instrument is a sovereign bond offered in the catalog. Immutable once seeded.
type Instrument struct {
	ID              string          `json:"id"`
	Country         string          `json:"country"`
	CountryCode     string          `json:"country_code"`
	YieldPercentage decimal.Decimal `json:"yield_percentage"`
	MaturityDate    string          `json:"maturity_date"` // YYYY-MM-DD
	MinimumEntry    decimal.Decimal `json:"minimum_entry"`
	FlagURL         string          `json:"flag_url"`
	Description     string          `json:"description"`
	Issuer          string          `json:"issuer"`
}

// AcceptsAmount reports whether amount meets the minimum entry.
func (i *Instrument) AcceptsAmount(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(i.MinimumEntry)
}
