package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningsHistoryDays is the fixed length of the synthetic earnings series.
const EarningsHistoryDays = 30

// EarningsDateLayout is the calendar-date format of earnings points.
const EarningsDateLayout = "2006-01-02"

var (
	// A holding's current value is invested × (1 + yield/100 × 0.5).
	yieldDivisor = decimal.NewFromInt(200)

	earningsBase = decimal.RequireFromString("0.7")
	earningsStep = decimal.RequireFromString("0.01") // (1/30) × 0.3
)

// Holding is the derived per-instrument position of one user.
type Holding struct {
	InstrumentID    string          `json:"bond_id"`
	Country         string          `json:"country"`
	Tokens          decimal.Decimal `json:"tokens"`
	Invested        decimal.Decimal `json:"invested"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	YieldPercentage decimal.Decimal `json:"yield_percentage"`
}

// EarningsPoint is one day of the synthetic earnings series.
type EarningsPoint struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// Portfolio is the aggregate view computed on every read. It is never persisted.
type Portfolio struct {
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalTokens     decimal.Decimal `json:"total_tokens"`
	Holdings        []Holding       `json:"holdings"`
	EarningsHistory []EarningsPoint `json:"earnings_history"`
}

// YieldLookup resolves an instrument's current yield. found is false when the
// catalog no longer has the instrument; err is reserved for storage failures.
type YieldLookup func(instrumentID string) (yield decimal.Decimal, found bool, err error)

// FoldHoldings folds buy records, oldest first, into holdings ordered by first purchase.
// The yield of each instrument is looked up once; a missing instrument yields 0.
func FoldHoldings(records []PurchaseRecord, lookup YieldLookup) ([]Holding, error) {
	index := make(map[string]int)
	holdings := make([]Holding, 0)

	for i := range records {
		rec := &records[i]
		if !rec.IsBuy() {
			continue
		}

		pos, seen := index[rec.InstrumentID]
		if !seen {
			yield, found, err := lookup(rec.InstrumentID)
			if err != nil {
				return nil, err
			}
			if !found {
				yield = decimal.Zero
			}
			holdings = append(holdings, Holding{
				InstrumentID:    rec.InstrumentID,
				Country:         rec.Country,
				Tokens:          decimal.Zero,
				Invested:        decimal.Zero,
				YieldPercentage: yield,
			})
			pos = len(holdings) - 1
			index[rec.InstrumentID] = pos
		}

		h := &holdings[pos]
		h.Tokens = h.Tokens.Add(rec.TokensReceived)
		h.Invested = h.Invested.Add(rec.Amount)
	}

	for i := range holdings {
		holdings[i].CurrentValue = CurrentValue(holdings[i].Invested, holdings[i].YieldPercentage)
	}
	return holdings, nil
}

// CurrentValue applies the half-yield markup. The result is not rounded.
func CurrentValue(invested, yieldPercentage decimal.Decimal) decimal.Decimal {
	return invested.Mul(decimal.NewFromInt(1).Add(yieldPercentage.Div(yieldDivisor)))
}

// NewPortfolio totals holdings and builds the earnings series ending on today's UTC date.
// The series is derived from the unrounded total; the totals are then rounded to cents.
func NewPortfolio(holdings []Holding, today time.Time) Portfolio {
	totalValue := decimal.Zero
	totalTokens := decimal.Zero
	for _, h := range holdings {
		totalValue = totalValue.Add(h.CurrentValue)
		totalTokens = totalTokens.Add(h.Tokens)
	}

	if holdings == nil {
		holdings = []Holding{}
	}

	return Portfolio{
		TotalValue:      totalValue.Round(2),
		TotalTokens:     totalTokens.Round(2),
		Holdings:        holdings,
		EarningsHistory: EarningsHistory(totalValue, today),
	}
}

// EarningsHistory returns EarningsHistoryDays points, oldest first, the last dated today (UTC).
// Point i is total × (0.7 + i/30 × 0.3), rounded to cents.
func EarningsHistory(total decimal.Decimal, today time.Time) []EarningsPoint {
	day := today.UTC()
	points := make([]EarningsPoint, EarningsHistoryDays)
	for i := 0; i < EarningsHistoryDays; i++ {
		factor := earningsBase.Add(earningsStep.Mul(decimal.NewFromInt(int64(i))))
		points[i] = EarningsPoint{
			Date:  day.AddDate(0, 0, i-(EarningsHistoryDays-1)).Format(EarningsDateLayout),
			Value: total.Mul(factor).Round(2),
		}
	}
	return points
}
