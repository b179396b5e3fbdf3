package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Users returns the store's ports.UserRepository.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Wallets returns the store's ports.WalletRepository.
func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }

// Instruments returns the store's ports.InstrumentRepository.
func (s *Store) Instruments() *InstrumentRepo { return &InstrumentRepo{s: s} }

// Purchases returns the store's ports.PurchaseRepository.
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{s: s} }

// Idempotency returns the store's ports.IdempotencyRepository.
func (s *Store) Idempotency() *IdempotencyRepo { return &IdempotencyRepo{s: s} }

// Audit returns the store's ports.AuditRepository.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// --- Users ---

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.s.mu.RLock()
	_, taken := r.s.emails[u.Email]
	r.s.mu.RUnlock()
	if taken || mt.emails[u.Email] {
		return fmt.Errorf("insert user: %w", domain.ErrDuplicate)
	}

	mt.emails[u.Email] = true
	user := *u
	mt.stage(func(s *Store) {
		s.users[user.ID] = user
		s.emails[user.Email] = user.ID
	})
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return nil, nil
	}
	u := r.s.users[id]
	return &u, nil
}

// --- Wallets ---

type WalletRepo struct{ s *Store }

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.s.mu.RLock()
	_, exists := r.s.wallets[w.UserID]
	r.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("insert wallet: %w", domain.ErrDuplicate)
	}

	wallet := *w
	mt.stage(func(s *Store) {
		s.wallets[wallet.UserID] = wallet
	})
	return nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// Credit applies immediately; it only ever raises a balance, so it cannot
// invalidate a debit check made by an open transaction.
func (r *WalletRepo) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return nil, nil
	}
	next := w.Balance.Add(amount)
	if !next.LessThan(domain.MaxAmount) {
		return nil, domain.ErrAmountOutOfRange
	}
	w.Balance = next
	w.UpdatedAt = nowUTC()
	r.s.wallets[userID] = w
	return &w, nil
}

// Debit checks the committed balance net of this transaction's earlier debits.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	w, ok := r.s.wallets[userID]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	staged := mt.debits[userID]
	available := w.Balance.Sub(staged)
	if available.LessThan(amount) {
		return nil, nil
	}

	mt.debits[userID] = staged.Add(amount)
	mt.stage(func(s *Store) {
		cur := s.wallets[userID]
		cur.Balance = cur.Balance.Sub(amount)
		cur.UpdatedAt = nowUTC()
		s.wallets[userID] = cur
	})

	w.Balance = available.Sub(amount)
	return &w, nil
}

// --- Instruments ---

type InstrumentRepo struct{ s *Store }

func (r *InstrumentRepo) List(ctx context.Context, limit int) ([]domain.Instrument, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Instrument, 0, len(r.s.instruments))
	for _, inst := range r.s.instruments {
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b domain.Instrument) int { return strings.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InstrumentRepo) GetByID(ctx context.Context, id string) (*domain.Instrument, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inst, ok := r.s.instruments[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (r *InstrumentRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.instruments)), nil
}

func (r *InstrumentRepo) InsertMissing(ctx context.Context, instruments []domain.Instrument) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var inserted int64
	for _, inst := range instruments {
		if _, ok := r.s.instruments[inst.ID]; ok {
			continue
		}
		r.s.instruments[inst.ID] = inst
		inserted++
	}
	return inserted, nil
}

// --- Purchases ---

type PurchaseRepo struct{ s *Store }

func (r *PurchaseRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PurchaseRecord) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	rec := *p
	mt.stage(func(s *Store) {
		s.purchases = append(s.purchases, rec)
	})
	return nil
}

func (r *PurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := range r.s.purchases {
		if r.s.purchases[i].ID == id {
			rec := r.s.purchases[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// List mirrors the SQL adapter: ORDER BY created_at, id.
func (r *PurchaseRepo) List(ctx context.Context, params ports.PurchaseListParams) ([]domain.PurchaseRecord, error) {
	r.s.mu.RLock()
	out := make([]domain.PurchaseRecord, 0)
	for _, p := range r.s.purchases {
		if p.UserID != params.UserID {
			continue
		}
		if params.Type != nil && p.Type != *params.Type {
			continue
		}
		out = append(out, p)
	}
	r.s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.PurchaseRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	if params.NewestFirst {
		slices.Reverse(out)
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

// --- Idempotency ---

type IdempotencyRepo struct{ s *Store }

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.s.mu.RLock()
	_, taken := r.s.idempotency[log.Key]
	r.s.mu.RUnlock()
	if taken || mt.keys[log.Key] {
		return fmt.Errorf("insert idempotency log: %w", domain.ErrDuplicate)
	}

	mt.keys[log.Key] = true
	entry := *log
	mt.stage(func(s *Store) {
		s.idempotency[entry.Key] = entry
	})
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entry, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// --- Audit ---

type AuditRepo struct{ s *Store }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

// Entries returns a copy of the audit trail.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Clone(r.s.audit)
}
