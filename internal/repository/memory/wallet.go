package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type walletRepo struct{ s *Store }

func copyEntry(e model.WalletLedgerEntry) *model.WalletLedgerEntry {
	return &e
}

// oldestFirst sorts by created_at then id
func oldestFirst(entries []*model.WalletLedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func (r *walletRepo) Create(ctx context.Context, entry *model.WalletLedgerEntry) error {
	defer r.s.lock(ctx)()
	st := r.s.st
	if entry.IdempotencyKey != nil {
		for _, e := range st.wallet {
			if e.IdempotencyKey != nil && *e.IdempotencyKey == *entry.IdempotencyKey {
				return repository.ErrDuplicate
			}
		}
	}
	entry.ID = st.nextWalletID
	st.nextWalletID++
	now := r.s.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	st.wallet[entry.ID] = *entry
	return nil
}

func (r *walletRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.WalletLedgerEntry, error) {
	defer r.s.lock(ctx)()
	for _, e := range r.s.st.wallet {
		if e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			return copyEntry(e), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *walletRepo) owned(account model.Account, match func(e *model.WalletLedgerEntry) bool) []*model.WalletLedgerEntry {
	var out []*model.WalletLedgerEntry
	for _, e := range r.s.st.wallet {
		e := e
		if account.Owns(&e) && match(&e) {
			out = append(out, &e)
		}
	}
	oldestFirst(out)
	return out
}

func (r *walletRepo) SumByStatus(ctx context.Context, account model.Account) (repository.StatusSums, error) {
	defer r.s.lock(ctx)()
	sums := repository.StatusSums{
		model.EntryLocked:    decimal.Zero,
		model.EntryAvailable: decimal.Zero,
		model.EntryPaidOut:   decimal.Zero,
	}
	for _, e := range r.owned(account, func(*model.WalletLedgerEntry) bool { return true }) {
		sums[e.Status] = sums[e.Status].Add(e.Signed())
	}
	return sums, nil
}

func (r *walletRepo) List(ctx context.Context, account model.Account, page, pageSize int) ([]*model.WalletLedgerEntry, int64, error) {
	defer r.s.lock(ctx)()
	all := r.owned(account, func(*model.WalletLedgerEntry) bool { return true })
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	offset, limit := pageBounds(page, pageSize)
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *walletRepo) ListAvailableForUpdate(ctx context.Context, account model.Account) ([]*model.WalletLedgerEntry, error) {
	defer r.s.lock(ctx)()
	return r.owned(account, func(e *model.WalletLedgerEntry) bool {
		return e.Status == model.EntryAvailable && e.Type == model.EntryCredit
	}), nil
}

func (r *walletRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.EntryStatus, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.st.wallet[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.StatusChangedAt = &at
	e.UpdatedAt = r.s.now()
	r.s.st.wallet[id] = e
	return true, nil
}

func (r *walletRepo) UpdateAmount(ctx context.Context, id uint64, amount decimal.Decimal) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.st.wallet[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Amount = amount
	e.UpdatedAt = r.s.now()
	r.s.st.wallet[id] = e
	return nil
}

func (r *walletRepo) ListLockedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.WalletLedgerEntry, error) {
	defer r.s.lock(ctx)()
	var out []*model.WalletLedgerEntry
	for _, e := range r.s.st.wallet {
		if e.Status == model.EntryLocked && e.CreatedAt.Before(cutoff) {
			out = append(out, copyEntry(e))
		}
	}
	oldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *walletRepo) MarkAllAvailablePaidOut(ctx context.Context, account model.Account, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, e := range r.owned(account, func(e *model.WalletLedgerEntry) bool { return e.Status == model.EntryAvailable }) {
		e.Status = model.EntryPaidOut
		e.StatusChangedAt = &at
		e.UpdatedAt = r.s.now()
		r.s.st.wallet[e.ID] = *e
		n++
	}
	return n, nil
}
