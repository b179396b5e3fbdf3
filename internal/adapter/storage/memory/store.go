// Package memory is a process-local storage driver. It honours the same
// transactional contract as the PostgreSQL adapter: writes staged in a
// transaction become visible together at Commit or not at all.
//
// Unlike PostgreSQL, which only locks the rows a transaction touches, the
// store admits one write transaction at a time across all users. Purchases
// by different users therefore queue behind each other here; their outcomes
// are the same as on PostgreSQL, only their throughput differs. Reads and
// credits never wait for an open transaction.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"fractional-bonds/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var errNotSupported = errors.New("memory: raw SQL is not supported")

// errForeignTx is returned when a repository receives a transaction it did not start.
var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds all tables. txSem admits a single write transaction store-wide
// and stands in for row locks; mu guards the maps themselves.
type Store struct {
	txSem chan struct{}

	mu          sync.RWMutex
	users       map[uuid.UUID]domain.User
	emails      map[string]uuid.UUID
	wallets     map[uuid.UUID]domain.Wallet
	instruments map[string]domain.Instrument
	purchases   []domain.PurchaseRecord
	idempotency map[string]domain.IdempotencyLog
	audit       []domain.AuditLog
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		txSem:       make(chan struct{}, 1),
		users:       make(map[uuid.UUID]domain.User),
		emails:      make(map[string]uuid.UUID),
		wallets:     make(map[uuid.UUID]domain.Wallet),
		instruments: make(map[string]domain.Instrument),
		idempotency: make(map[string]domain.IdempotencyLog),
	}
}

// Begin implements ports.DBTransactor. It blocks while another write
// transaction is open, or until ctx is done.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &memTx{
		store:  s,
		debits: make(map[uuid.UUID]decimal.Decimal),
		emails: make(map[string]bool),
		keys:   make(map[string]bool),
	}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Name() string {
	return "memory"
}

// memTx stages writes as closures applied under the store lock at Commit.
type memTx struct {
	store *Store
	ops   []func(s *Store)
	done  bool

	// Staged state that reads inside the same transaction must observe.
	debits map[uuid.UUID]decimal.Decimal
	emails map[string]bool
	keys   map[string]bool
}

func asTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt == nil {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func (t *memTx) stage(op func(s *Store)) {
	t.ops = append(t.ops, op)
}

func (t *memTx) finish() {
	t.done = true
	t.ops = nil
	<-t.store.txSem
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	for _, op := range t.ops {
		op(t.store)
	}
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory: nested transactions are not supported")
}

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNotSupported
}

func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (t *memTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNotSupported
}

func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNotSupported
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNotSupported
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{err: errNotSupported}
}

func (t *memTx) Conn() *pgx.Conn {
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }
