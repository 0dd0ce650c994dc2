package memory

import (
	"context"
	"sort"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type inventoryRepo struct{ s *Store }

func (r *inventoryRepo) Create(ctx context.Context, tx *model.InventoryTransaction) error {
	defer r.s.lock(ctx)()
	st := r.s.st
	if tx.OrderID != nil {
		for _, row := range st.inventory {
			if row.OrderID != nil && row.ListingID == tx.ListingID && *row.OrderID == *tx.OrderID && row.Type == tx.Type {
				return repository.ErrDuplicate
			}
		}
	}
	tx.ID = st.nextInvTxID
	st.nextInvTxID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.s.now()
	}
	row := *tx
	if tx.OrderID != nil {
		id := *tx.OrderID
		row.OrderID = &id
	}
	st.inventory = append(st.inventory, row)
	return nil
}

func (r *inventoryRepo) FindByOrder(ctx context.Context, listingID, orderID uint64, typ model.InventoryTransactionType) (*model.InventoryTransaction, error) {
	defer r.s.lock(ctx)()
	for _, row := range r.s.st.inventory {
		if row.OrderID != nil && row.ListingID == listingID && *row.OrderID == orderID && row.Type == typ {
			row := row
			return &row, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *inventoryRepo) ListByListing(ctx context.Context, listingID uint64, limit int) ([]*model.InventoryTransaction, error) {
	defer r.s.lock(ctx)()
	if limit <= 0 {
		limit = 50
	}
	var out []*model.InventoryTransaction
	for _, row := range r.s.st.inventory {
		if row.ListingID == listingID {
			row := row
			out = append(out, &row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inventoryRepo) ListByOrder(ctx context.Context, orderID uint64) ([]*model.InventoryTransaction, error) {
	defer r.s.lock(ctx)()
	var out []*model.InventoryTransaction
	for _, row := range r.s.st.inventory {
		if row.OrderID != nil && *row.OrderID == orderID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}
