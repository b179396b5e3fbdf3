package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/internal/core/ports/mocks"
	"fractional-bonds/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type purchaseTestDeps struct {
	svc            *PurchaseServiceImpl
	instrumentRepo *mocks.MockInstrumentRepository
	walletRepo     *mocks.MockWalletRepository
	purchaseRepo   *mocks.MockPurchaseRepository
	idempRepo      *mocks.MockIdempotencyRepository
	idempCache     *mocks.MockIdempotencyCache
	publisher      *mocks.MockEventPublisher
	transactor     *mocks.MockDBTransactor
	ctrl           *gomock.Controller
}

func setupPurchaseService(t *testing.T) *purchaseTestDeps {
	ctrl := gomock.NewController(t)
	d := &purchaseTestDeps{
		instrumentRepo: mocks.NewMockInstrumentRepository(ctrl),
		walletRepo:     mocks.NewMockWalletRepository(ctrl),
		purchaseRepo:   mocks.NewMockPurchaseRepository(ctrl),
		idempRepo:      mocks.NewMockIdempotencyRepository(ctrl),
		idempCache:     mocks.NewMockIdempotencyCache(ctrl),
		publisher:      mocks.NewMockEventPublisher(ctrl),
		transactor:     mocks.NewMockDBTransactor(ctrl),
		ctrl:           ctrl,
	}
	d.svc = NewPurchaseService(
		d.instrumentRepo, d.walletRepo, d.purchaseRepo, d.idempRepo,
		d.idempCache, d.publisher, d.transactor, newTestLogger(),
	)
	return d
}

var usBond = &domain.Instrument{
	ID:              "bond_us_1",
	Country:         "United States",
	YieldPercentage: dec("4.2"),
	MinimumEntry:    dec("1"),
}

// ==================== Buy Tests ====================

func TestPurchaseService_Buy_Success(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("100")}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, dec("10")).Return(&domain.Wallet{UserID: userID, Balance: dec("90")}, nil)
	d.purchaseRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.publisher.EXPECT().Publish(ctx, domain.EventPurchaseCompleted, gomock.Any()).Return(nil)

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, "bond_us_1", rec.InstrumentID)
	assert.Equal(t, "United States", rec.Country)
	assert.Equal(t, domain.PurchaseTypeBuy, rec.Type)
	assert.True(t, rec.TokensReceived.Equal(dec("10")))
	assert.Equal(t, userID, rec.UserID)
}

func TestPurchaseService_Buy_InvalidAmount(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Buy(context.Background(), ports.BuyRequest{UserID: uuid.New(), InstrumentID: "bond_us_1", Amount: dec("0")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestPurchaseService_Buy_AmountNotStorable(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	// No repository expectations: nothing may be read or written.
	for _, amount := range []string{"10.1234567", "100000000000000"} {
		_, err := d.svc.Buy(context.Background(), ports.BuyRequest{UserID: uuid.New(), InstrumentID: "bond_us_1", Amount: dec(amount)})
		assert.Equal(t, "WAL_003", appCode(err), amount)
	}
}

func TestPurchaseService_Buy_InstrumentNotFound(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_xx_1").Return(nil, nil)

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: uuid.New(), InstrumentID: "bond_xx_1", Amount: dec("10")})
	assert.Equal(t, "CAT_001", appCode(err))
}

func TestPurchaseService_Buy_BelowMinimum(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: uuid.New(), InstrumentID: "bond_us_1", Amount: dec("0.5")})
	require.True(t, apperror.IsKind(err, apperror.KindBelowMinimum))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Minimum entry is $1", appErr.Message)
}

func TestPurchaseService_Buy_InsufficientFundsPreCheck(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("5")}, nil)

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	assert.Equal(t, "PUR_001", appCode(err))
}

func TestPurchaseService_Buy_NoWallet(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(nil, nil)

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	assert.Equal(t, "WAL_001", appCode(err))
}

func TestPurchaseService_Buy_ConditionalDebitFails(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("100")}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// Another purchase drained the wallet between the pre-check and the debit.
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, dec("60")).Return(nil, nil)

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("60")})
	assert.Equal(t, "PUR_001", appCode(err))
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestPurchaseService_Buy_CreateFailsRollsBack(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("100")}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, dec("10")).Return(&domain.Wallet{Balance: dec("90")}, nil)
	d.purchaseRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(errors.New("disk full"))

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	assert.True(t, apperror.IsKind(err, apperror.KindInternal))
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

// ==================== Commit verification ====================

func expectBuyUpToCommit(d *purchaseTestDeps, ctx context.Context, userID uuid.UUID, tx *mockTx, created **domain.PurchaseRecord) {
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("100")}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, dec("10")).Return(&domain.Wallet{Balance: dec("90")}, nil)
	d.purchaseRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, rec *domain.PurchaseRecord) error {
			*created = rec
			return nil
		})
}

func TestPurchaseService_Buy_CommitErrorButDurable(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{commitErr: errors.New("connection reset")}
	var created *domain.PurchaseRecord

	expectBuyUpToCommit(d, ctx, userID, tx, &created)
	d.purchaseRepo.EXPECT().GetByID(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, id uuid.UUID) (*domain.PurchaseRecord, error) {
			assert.Equal(t, created.ID, id)
			return created, nil
		})
	d.publisher.EXPECT().Publish(ctx, domain.EventPurchaseCompleted, gomock.Any()).Return(nil)

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, created.ID, rec.ID)
}

func TestPurchaseService_Buy_CommitErrorNothingApplied(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{commitErr: errors.New("serialization failure")}
	var created *domain.PurchaseRecord

	expectBuyUpToCommit(d, ctx, userID, tx, &created)
	d.purchaseRepo.EXPECT().GetByID(ctx, gomock.Any()).Return(nil, nil)

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	assert.True(t, apperror.IsKind(err, apperror.KindInternal))
}

func TestPurchaseService_Buy_CommitOutcomeUnknown(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{commitErr: errors.New("connection reset")}
	var created *domain.PurchaseRecord

	expectBuyUpToCommit(d, ctx, userID, tx, &created)
	d.purchaseRepo.EXPECT().GetByID(ctx, gomock.Any()).Return(nil, errors.New("database unreachable"))

	_, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10")})
	assert.True(t, apperror.IsKind(err, apperror.KindInconsistent))
	assert.Equal(t, "SYS_002", appCode(err))
}

// ==================== Idempotency ====================

func TestPurchaseService_Buy_IdempotentReplayFromCache(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	prev := domain.NewPurchase(userID, usBond, dec("10"), timeFixture())
	data, err := json.Marshal(prev)
	require.NoError(t, err)

	key := domain.BuildIdempotencyKey(userID, "order-1")
	d.idempCache.EXPECT().Get(ctx, key).Return(data, nil)

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10"), IdempotencyKey: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, prev.ID, rec.ID)
	assert.True(t, prev.Amount.Equal(rec.Amount))
}

func TestPurchaseService_Buy_IdempotentReplayFromDB(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	prev := domain.NewPurchase(userID, usBond, dec("10"), timeFixture())
	data, err := json.Marshal(prev)
	require.NoError(t, err)

	key := domain.BuildIdempotencyKey(userID, "order-1")
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, errors.New("redis down"))
	d.idempRepo.EXPECT().Get(ctx, key).Return(&domain.IdempotencyLog{Key: key, PurchaseID: prev.ID, ResponseJSON: data}, nil)

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10"), IdempotencyKey: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, prev.ID, rec.ID)
}

func TestPurchaseService_Buy_IdempotentFirstRequest(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(userID, "order-2")

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil)
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("100")}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, dec("10")).Return(&domain.Wallet{Balance: dec("90")}, nil)
	d.purchaseRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), idempotencyTTL).Return(errors.New("redis down"))
	d.publisher.EXPECT().Publish(ctx, domain.EventPurchaseCompleted, gomock.Any()).Return(errors.New("broker down"))

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10"), IdempotencyKey: "order-2"})
	require.NoError(t, err, "cache and broker failures are best effort")
	assert.NotNil(t, rec)
	assert.True(t, tx.committed)
}

func TestPurchaseService_Buy_IdempotentLostRace(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(userID, "order-3")
	winner := domain.NewPurchase(userID, usBond, dec("10"), timeFixture())
	winnerJSON, err := json.Marshal(winner)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	gomock.InOrder(
		d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil),
		d.idempRepo.EXPECT().Get(ctx, key).Return(&domain.IdempotencyLog{Key: key, PurchaseID: winner.ID, ResponseJSON: winnerJSON}, nil),
	)
	d.instrumentRepo.EXPECT().GetByID(ctx, "bond_us_1").Return(usBond, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: dec("100")}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, dec("10")).Return(&domain.Wallet{Balance: dec("90")}, nil)
	d.purchaseRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(fmt.Errorf("insert idempotency log: %w", domain.ErrDuplicate))

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10"), IdempotencyKey: "order-3"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, rec.ID)
	assert.False(t, tx.committed, "loser's debit must not commit")
	assert.True(t, tx.rolledBack)
}

func TestPurchaseService_Buy_IdempotencyKeyReusedForDifferentPurchase(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	prev := domain.NewPurchase(userID, usBond, dec("10"), timeFixture())
	data, err := json.Marshal(prev)
	require.NoError(t, err)
	key := domain.BuildIdempotencyKey(userID, "order-5")

	tests := []struct {
		name   string
		bondID string
		amount string
	}{
		{"different amount", "bond_us_1", "50"},
		{"different bond", "bond_sg_1", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.idempCache.EXPECT().Get(ctx, key).Return(data, nil)

			rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: tt.bondID, Amount: dec(tt.amount), IdempotencyKey: "order-5"})
			assert.Nil(t, rec)
			assert.Equal(t, "PUR_003", appCode(err))
			assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		})
	}
}

func TestPurchaseService_Buy_IdempotentReplayMatchesEquivalentAmount(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	prev := domain.NewPurchase(userID, usBond, dec("10"), timeFixture())
	data, err := json.Marshal(prev)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, domain.BuildIdempotencyKey(userID, "order-6")).Return(data, nil)

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("10.00"), IdempotencyKey: "order-6"})
	require.NoError(t, err)
	assert.Equal(t, prev.ID, rec.ID)
}

func TestPurchaseService_Buy_NoCacheConfigured(t *testing.T) {
	d := setupPurchaseService(t)
	defer d.ctrl.Finish()
	d.svc.idempCache = nil

	ctx := context.Background()
	userID := uuid.New()
	key := domain.BuildIdempotencyKey(userID, "order-4")
	prev := domain.NewPurchase(userID, usBond, dec("3"), timeFixture())
	data, err := json.Marshal(prev)
	require.NoError(t, err)

	d.idempRepo.EXPECT().Get(ctx, key).Return(&domain.IdempotencyLog{Key: key, ResponseJSON: data}, nil)

	rec, err := d.svc.Buy(ctx, ports.BuyRequest{UserID: userID, InstrumentID: "bond_us_1", Amount: dec("3"), IdempotencyKey: "order-4"})
	require.NoError(t, err)
	assert.Equal(t, prev.ID, rec.ID)
}
