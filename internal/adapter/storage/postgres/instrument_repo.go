package postgres

import (
	"context"
	"errors"
	"fmt"

	"fractional-bonds/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const instrumentColumns = `id, country, country_code, yield_percentage, maturity_date,
		minimum_entry, flag_url, description, issuer`

// InstrumentRepo implements ports.InstrumentRepository.
type InstrumentRepo struct {
	pool Pool
}

// NewInstrumentRepo creates a new InstrumentRepo.
func NewInstrumentRepo(pool Pool) *InstrumentRepo {
	return &InstrumentRepo{pool: pool}
}

// List returns up to limit instruments ordered by id.
func (r *InstrumentRepo) List(ctx context.Context, limit int) ([]domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments ORDER BY id LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	instruments := make([]domain.Instrument, 0)
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument row: %w", err)
		}
		instruments = append(instruments, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument rows: %w", err)
	}
	return instruments, nil
}

// GetByID fetches an instrument by id.
func (r *InstrumentRepo) GetByID(ctx context.Context, id string) (*domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE id = $1`

	inst, err := scanInstrument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	return inst, nil
}

// Count returns the number of catalog rows.
func (r *InstrumentRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count instruments: %w", err)
	}
	return n, nil
}

// InsertMissing inserts the given instruments in one transaction, skipping ids that exist.
func (r *InstrumentRepo) InsertMissing(ctx context.Context, instruments []domain.Instrument) (int64, error) {
	query := `INSERT INTO instruments (` + instrumentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var inserted int64
	for _, inst := range instruments {
		tag, err := tx.Exec(ctx, query,
			inst.ID, inst.Country, inst.CountryCode, inst.YieldPercentage, inst.MaturityDate,
			inst.MinimumEntry, inst.FlagURL, inst.Description, inst.Issuer,
		)
		if err != nil {
			return 0, fmt.Errorf("insert instrument %s: %w", inst.ID, err)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed tx: %w", err)
	}
	return inserted, nil
}

func scanInstrument(row pgx.Row) (*domain.Instrument, error) {
	inst := &domain.Instrument{}
	err := row.Scan(
		&inst.ID, &inst.Country, &inst.CountryCode, &inst.YieldPercentage, &inst.MaturityDate,
		&inst.MinimumEntry, &inst.FlagURL, &inst.Description, &inst.Issuer,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
