package service

import (
	"context"
	"fmt"
	"strings"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const catalogListLimit = 100

type catalogService struct {
	repo     ports.InstrumentRepository
	defaults []domain.Instrument
	log      zerolog.Logger
}

// NewCatalogService creates the bond catalog service. defaults is what Seed
// writes into an empty store; pass DefaultCatalog() in production.
func NewCatalogService(repo ports.InstrumentRepository, defaults []domain.Instrument, log zerolog.Logger) ports.CatalogService {
	return &catalogService{repo: repo, defaults: defaults, log: log}
}

func (s *catalogService) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	instruments, err := s.repo.List(ctx, catalogListLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list instruments: %w", err))
	}
	if instruments == nil {
		instruments = []domain.Instrument{}
	}
	return instruments, nil
}

func (s *catalogService) GetInstrument(ctx context.Context, id string) (*domain.Instrument, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get instrument: %w", err))
	}
	if inst == nil {
		return nil, apperror.ErrInstrumentNotFound()
	}
	return inst, nil
}

// Seed writes the default catalog when the store has no instruments yet.
// Running it again never overwrites or duplicates rows.
func (s *catalogService) Seed(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count instruments: %w", err)
	}
	if count > 0 {
		s.log.Debug().Int64("existing", count).Msg("catalog already seeded")
		return 0, nil
	}

	inserted, err := s.repo.InsertMissing(ctx, s.defaults)
	if err != nil {
		return 0, fmt.Errorf("seed instruments: %w", err)
	}
	s.log.Info().Int64("inserted", inserted).Msg("catalog seeded")
	return inserted, nil
}

// DefaultCatalog returns the eight sovereign bonds offered at launch.
func DefaultCatalog() []domain.Instrument {
	type row struct {
		id, country, code, yield, maturity, issuer, description string
	}
	rows := []row{
		{"bond_us_1", "United States", "US", "4.2", "2028-12-31", "U.S. Department of Treasury",
			"US Treasury bonds backed by the full faith of the United States government."},
		{"bond_sg_1", "Singapore", "SG", "3.8", "2029-06-30", "Monetary Authority of Singapore",
			"Singapore Government Securities with AAA credit rating."},
		{"bond_de_1", "Germany", "DE", "2.9", "2030-03-15", "Federal Republic of Germany",
			"German Bundesanleihen, considered one of the safest investments in Europe."},
		{"bond_jp_1", "Japan", "JP", "1.5", "2027-09-30", "Ministry of Finance Japan",
			"Japanese Government Bonds (JGBs) known for stability."},
		{"bond_ca_1", "Canada", "CA", "3.5", "2029-11-15", "Government of Canada",
			"Government of Canada bonds with strong credit rating."},
		{"bond_au_1", "Australia", "AU", "4.0", "2028-08-31", "Australian Office of Financial Management",
			"Australian Government Bonds with attractive yields."},
		{"bond_uk_1", "United Kingdom", "GB", "4.5", "2029-04-30", "UK Debt Management Office",
			"UK Gilts issued by Her Majesty's Treasury."},
		{"bond_ch_1", "Switzerland", "CH", "1.8", "2030-12-31", "Swiss Federal Finance Administration",
			"Swiss Confederation bonds, ultra-safe haven assets."},
	}

	minimum := decimal.NewFromInt(1)
	out := make([]domain.Instrument, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Instrument{
			ID:              r.id,
			Country:         r.country,
			CountryCode:     r.code,
			YieldPercentage: decimal.RequireFromString(r.yield),
			MaturityDate:    r.maturity,
			MinimumEntry:    minimum,
			FlagURL:         "https://flagcdn.com/w80/" + strings.ToLower(r.code) + ".png",
			Description:     r.description,
			Issuer:          r.issuer,
		})
	}
	return out
}
