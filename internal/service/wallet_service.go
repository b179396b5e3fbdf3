package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// transactionListLimit caps GET /transactions.
const transactionListLimit = 100

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	purchaseRepo ports.PurchaseRepository
	publisher    ports.EventPublisher
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	purchaseRepo ports.PurchaseRepository,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		purchaseRepo: purchaseRepo,
		publisher:    publisher,
		log:          log,
	}
}

func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// TopUp credits the wallet. The credit is a single UPDATE, so it composes
// safely with concurrent purchases.
func (s *WalletServiceImpl) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.AmountInRange(amount) {
		return nil, apperror.ErrAmountOutOfRange()
	}

	wallet, err := s.walletRepo.Credit(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrAmountOutOfRange) {
			return nil, apperror.ErrAmountOutOfRange()
		}
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	event := domain.WalletToppedUpEvent{
		UserID:     userID,
		Amount:     amount,
		NewBalance: wallet.Balance,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, domain.EventWalletToppedUp, event); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to publish top-up event")
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("new_balance", wallet.Balance.String()).
		Msg("wallet topped up")

	return wallet, nil
}

// ListTransactions returns the user's most recent records, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error) {
	records, err := s.purchaseRepo.List(ctx, ports.PurchaseListParams{
		UserID:      userID,
		NewestFirst: true,
		Limit:       transactionListLimit,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	if records == nil {
		records = []domain.PurchaseRecord{}
	}
	return records, nil
}
