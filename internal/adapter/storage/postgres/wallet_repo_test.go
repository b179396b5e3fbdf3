package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"fractional-bonds/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(balance string) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		UserID:    uuid.New(),
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"user_id", "balance", "created_at", "updated_at"}).
		AddRow(w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet("100")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet("90")

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(w.UserID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByUserID(context.Background(), w.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(90)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByUserID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByUserID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestWalletRepo_Credit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet("150")
	amount := decimal.NewFromInt(50)

	mock.ExpectQuery("UPDATE wallets SET balance = balance \\+ \\$1").
		WithArgs(amount, w.UserID).
		WillReturnRows(walletRow(w))

	result, err := repo.Credit(context.Background(), w.UserID, amount)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(150)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Credit_BalanceOverflow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	amount := decimal.RequireFromString("90000000000000")

	mock.ExpectQuery("UPDATE wallets SET balance = balance \\+ \\$1").
		WithArgs(amount, userID).
		WillReturnError(&pgconn.PgError{Code: "22003"})

	result, err := repo.Credit(context.Background(), userID, amount)
	assert.ErrorIs(t, err, domain.ErrAmountOutOfRange)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Debit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet("90")
	amount := decimal.NewFromInt(10)

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)UPDATE wallets SET balance = balance - \\$1.+AND balance >= \\$1").
		WithArgs(amount, w.UserID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.Debit(context.Background(), tx, w.UserID, amount)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(90)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Debit_ConditionFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	amount := decimal.NewFromInt(1000)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets SET balance = balance -").
		WithArgs(amount, userID).
		WillReturnError(pgx.ErrNoRows)

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.Debit(context.Background(), tx, userID, amount)
	assert.NoError(t, err)
	assert.Nil(t, result, "no row returned means the balance did not cover the debit")
}

func TestWalletRepo_Debit_DBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	amount := decimal.NewFromInt(5)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets").
		WithArgs(amount, userID).
		WillReturnError(errors.New("connection reset"))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.Debit(context.Background(), tx, userID, amount)
	assert.ErrorContains(t, err, "debit wallet")
}
