package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// PurchaseServiceImpl implements ports.PurchaseService.
type PurchaseServiceImpl struct {
	instrumentRepo ports.InstrumentRepository
	walletRepo     ports.WalletRepository
	purchaseRepo   ports.PurchaseRepository
	idempRepo      ports.IdempotencyRepository
	idempCache     ports.IdempotencyCache // nil when Redis is disabled
	publisher      ports.EventPublisher
	transactor     ports.DBTransactor
	log            zerolog.Logger
}

// NewPurchaseService creates a new PurchaseServiceImpl.
func NewPurchaseService(
	instrumentRepo ports.InstrumentRepository,
	walletRepo ports.WalletRepository,
	purchaseRepo ports.PurchaseRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{
		instrumentRepo: instrumentRepo,
		walletRepo:     walletRepo,
		purchaseRepo:   purchaseRepo,
		idempRepo:      idempRepo,
		idempCache:     idempCache,
		publisher:      publisher,
		transactor:     transactor,
		log:            log,
	}
}

// Buy debits the wallet and appends a purchase record in one transaction.
// Validation failures leave no side effects.
func (s *PurchaseServiceImpl) Buy(ctx context.Context, req ports.BuyRequest) (*domain.PurchaseRecord, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.AmountInRange(req.Amount) {
		return nil, apperror.ErrAmountOutOfRange()
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.UserID, req.IdempotencyKey)
		replay, err := s.lookupReplay(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return matchReplay(replay, req)
		}
	}

	inst, err := s.instrumentRepo.GetByID(ctx, req.InstrumentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get instrument: %w", err))
	}
	if inst == nil {
		return nil, apperror.ErrInstrumentNotFound()
	}
	if !inst.AcceptsAmount(req.Amount) {
		return nil, apperror.ErrBelowMinimum(inst.MinimumEntry.String())
	}

	// Pre-check; the conditional debit below enforces it again under concurrency.
	wallet, err := s.walletRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if wallet.Balance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	debited, err := s.walletRepo.Debit(ctx, dbTx, req.UserID, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
	}
	if debited == nil {
		return nil, apperror.ErrInsufficientFunds()
	}

	record := domain.NewPurchase(req.UserID, inst, req.Amount, time.Now())
	if err := s.purchaseRepo.Create(ctx, dbTx, record); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create purchase: %w", err))
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(record)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		entry := &domain.IdempotencyLog{
			Key:          idempKey,
			PurchaseID:   record.ID,
			ResponseJSON: respJSON,
			CreatedAt:    record.CreatedAt,
		}
		if err := s.idempRepo.Create(ctx, dbTx, entry); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// A concurrent request with the same key won; return its record.
				_ = dbTx.Rollback(ctx)
				winner, err := s.replayWinner(ctx, idempKey)
				if err != nil {
					return nil, err
				}
				return matchReplay(winner, req)
			}
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		if verr := s.verifyCommitted(ctx, record.ID, err); verr != nil {
			return nil, verr
		}
	}

	s.afterCommit(ctx, record, idempKey, respJSON, debited)
	return record, nil
}

// verifyCommitted decides the outcome of a commit that reported an error by
// re-reading the record. nil means the purchase is durable.
func (s *PurchaseServiceImpl) verifyCommitted(ctx context.Context, id uuid.UUID, commitErr error) error {
	found, err := s.purchaseRepo.GetByID(ctx, id)
	if err != nil {
		s.log.Error().Err(err).AnErr("commit_err", commitErr).Str("purchase_id", id.String()).
			Msg("purchase outcome unknown")
		return apperror.ErrInconsistent(errors.Join(commitErr, err))
	}
	if found == nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", commitErr))
	}
	s.log.Warn().Err(commitErr).Str("purchase_id", id.String()).Msg("commit reported an error but the purchase is durable")
	return nil
}

func (s *PurchaseServiceImpl) afterCommit(ctx context.Context, rec *domain.PurchaseRecord, idempKey string, respJSON []byte, wallet *domain.Wallet) {
	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	event := domain.PurchaseCompletedEvent{
		PurchaseID:   rec.ID,
		UserID:       rec.UserID,
		InstrumentID: rec.InstrumentID,
		Amount:       rec.Amount,
		Tokens:       rec.TokensReceived,
		OccurredAt:   rec.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, domain.EventPurchaseCompleted, event); err != nil {
		s.log.Warn().Err(err).Str("purchase_id", rec.ID.String()).Msg("failed to publish purchase event")
	}

	s.log.Info().
		Str("purchase_id", rec.ID.String()).
		Str("user_id", rec.UserID.String()).
		Str("bond_id", rec.InstrumentID).
		Str("amount", rec.Amount.String()).
		Str("new_balance", wallet.Balance.String()).
		Msg("purchase completed")
}

// lookupReplay checks Redis first, then the idempotency table.
func (s *PurchaseServiceImpl) lookupReplay(ctx context.Context, key string) (*domain.PurchaseRecord, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalRecord(cached)
		}
	}

	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	return unmarshalRecord(entry.ResponseJSON)
}

func (s *PurchaseServiceImpl) replayWinner(ctx context.Context, key string) (*domain.PurchaseRecord, error) {
	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load winning purchase: %w", err))
	}
	if entry == nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency key %q reported duplicate but is missing", key))
	}
	return unmarshalRecord(entry.ResponseJSON)
}

// matchReplay returns the stored purchase only if the retried request asks
// for the same bond and amount.
func matchReplay(rec *domain.PurchaseRecord, req ports.BuyRequest) (*domain.PurchaseRecord, error) {
	if rec.InstrumentID != req.InstrumentID || !rec.Amount.Equal(req.Amount) {
		return nil, apperror.ErrIdempotencyMismatch()
	}
	return rec, nil
}

func unmarshalRecord(data []byte) (*domain.PurchaseRecord, error) {
	rec := &domain.PurchaseRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached purchase: %w", err))
	}
	return rec, nil
}
