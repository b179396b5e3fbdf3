package postgres

import (
	"context"
	"errors"
	"testing"

	"fractional-bonds/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), mock)
	assert.ErrorContains(t, err, "apply schema")
}

func TestSchema_DeclaresAllTables(t *testing.T) {
	for _, table := range []string{"users", "wallets", "instruments", "purchases", "idempotency_logs", "audit_logs"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Contains(t, schemaSQL, "CHECK (balance >= 0)")
}

func TestMapInsertErr(t *testing.T) {
	dup := mapInsertErr("insert user", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, dup, domain.ErrDuplicate)

	other := mapInsertErr("insert user", &pgconn.PgError{Code: "23503"})
	assert.NotErrorIs(t, other, domain.ErrDuplicate)
	assert.ErrorContains(t, other, "insert user")
}
