package service

import (
	"context"
	"fmt"
	"time"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// portfolioService implements ports.PortfolioService. It never writes.
type portfolioService struct {
	purchaseRepo   ports.PurchaseRepository
	instrumentRepo ports.InstrumentRepository
	now            func() time.Time
}

// NewPortfolioService creates a new portfolio service.
func NewPortfolioService(
	purchaseRepo ports.PurchaseRepository,
	instrumentRepo ports.InstrumentRepository,
) ports.PortfolioService {
	return &portfolioService{
		purchaseRepo:   purchaseRepo,
		instrumentRepo: instrumentRepo,
		now:            time.Now,
	}
}

// ComputePortfolio folds the user's buys into holdings priced at the
// catalog's current yields.
func (s *portfolioService) ComputePortfolio(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	buy := domain.PurchaseTypeBuy
	records, err := s.purchaseRepo.List(ctx, ports.PurchaseListParams{
		UserID: userID,
		Type:   &buy,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list purchases: %w", err))
	}

	lookup := func(id string) (decimal.Decimal, bool, error) {
		inst, err := s.instrumentRepo.GetByID(ctx, id)
		if err != nil {
			return decimal.Zero, false, err
		}
		if inst == nil {
			return decimal.Zero, false, nil
		}
		return inst.YieldPercentage, true, nil
	}

	holdings, err := domain.FoldHoldings(records, lookup)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fold holdings: %w", err))
	}

	portfolio := domain.NewPortfolio(holdings, s.now())
	return &portfolio, nil
}
