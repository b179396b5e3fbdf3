package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const purchaseColumns = `id, user_id, instrument_id, country, amount, tokens_received, transaction_type, created_at`

// PurchaseRepo implements ports.PurchaseRepository. Rows are never updated or deleted.
type PurchaseRepo struct {
	pool Pool
}

// NewPurchaseRepo creates a new PurchaseRepo.
func NewPurchaseRepo(pool Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

// Create appends a record within the purchase transaction.
func (r *PurchaseRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PurchaseRecord) error {
	query := `INSERT INTO purchases (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.UserID, p.InstrumentID, p.Country,
		p.Amount, p.TokensReceived, p.Type, p.CreatedAt,
	)
	if err != nil {
		return mapInsertErr("insert purchase", err)
	}
	return nil
}

// GetByID fetches a record by UUID. Used to verify a commit whose outcome was lost.
func (r *PurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRecord, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`

	p, err := scanPurchase(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// List fetches a user's records with optional type filter, ordering and limit.
func (r *PurchaseRepo) List(ctx context.Context, params ports.PurchaseListParams) ([]domain.PurchaseRecord, error) {
	conditions := []string{"user_id = $1"}
	args := []any{params.UserID}

	if params.Type != nil {
		args = append(args, *params.Type)
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", len(args)))
	}

	order := "ASC"
	if params.NewestFirst {
		order = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM purchases WHERE %s ORDER BY created_at %s, id %s`,
		purchaseColumns, strings.Join(conditions, " AND "), order, order)
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	records := make([]domain.PurchaseRecord, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		records = append(records, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}
	return records, nil
}

func scanPurchase(row pgx.Row) (*domain.PurchaseRecord, error) {
	p := &domain.PurchaseRecord{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.InstrumentID, &p.Country,
		&p.Amount, &p.TokensReceived, &p.Type, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
