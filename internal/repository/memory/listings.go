package memory

import (
	"context"
	"sort"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type listingRepo struct{ s *Store }

func (r *listingRepo) Create(ctx context.Context, listing *model.Listing) error {
	defer r.s.lock(ctx)()
	st := r.s.st
	if listing.ID == 0 {
		listing.ID = st.nextListingID
	}
	if _, ok := st.listings[listing.ID]; ok {
		return repository.ErrDuplicate
	}
	if listing.ID >= st.nextListingID {
		st.nextListingID = listing.ID + 1
	}
	now := r.s.now()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	st.listings[listing.ID] = *listing
	return nil
}

func (r *listingRepo) GetByID(ctx context.Context, id uint64) (*model.Listing, error) {
	defer r.s.lock(ctx)()
	l, ok := r.s.st.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *listingRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Listing, error) {
	return r.GetByID(ctx, id)
}

func (r *listingRepo) GetManyForUpdate(ctx context.Context, ids []uint64) ([]*model.Listing, error) {
	defer r.s.lock(ctx)()
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []*model.Listing
	var last uint64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		last = id
		if l, ok := r.s.st.listings[id]; ok {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}

func (r *listingRepo) UpdateQuantities(ctx context.Context, id uint64, stock, reserved int) error {
	defer r.s.lock(ctx)()
	l, ok := r.s.st.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.StockQuantity = stock
	l.ReservedQuantity = reserved
	l.UpdatedAt = r.s.now()
	r.s.st.listings[id] = l
	return nil
}
