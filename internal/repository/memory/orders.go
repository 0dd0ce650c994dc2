package memory

import (
	"context"
	"sort"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	defer r.s.lock(ctx)()
	st := r.s.st
	if _, ok := st.orders[order.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, o := range st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicate
		}
	}

	now := r.s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	seen := make(map[uint64]bool, len(order.Items))
	for i := range order.Items {
		it := &order.Items[i]
		if seen[it.ListingID] {
			return repository.ErrDuplicate
		}
		seen[it.ListingID] = true
		it.OrderID = order.ID
		if it.ID == 0 {
			it.ID = st.nextItemID
			st.nextItemID++
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
	}
	st.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	defer r.s.lock(ctx)()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	o = copyOrder(o)
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ListingID < o.Items[j].ListingID })
	return &o, nil
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) GetByOrderNumber(ctx context.Context, number string) (*model.Order, error) {
	defer r.s.lock(ctx)()
	for _, o := range r.s.st.orders {
		if o.OrderNumber == number {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *orderRepo) UpdateState(ctx context.Context, order *model.Order) error {
	defer r.s.lock(ctx)()
	st := r.s.st
	existing, ok := st.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.PaymentReference != nil {
		for id, o := range st.orders {
			if id != order.ID && o.PaymentReference != nil && *o.PaymentReference == *order.PaymentReference {
				return repository.ErrDuplicate
			}
		}
	}
	order.UpdatedAt = r.s.now()
	updated := *order
	updated.Items = existing.Items
	st.orders[order.ID] = copyOrder(updated)
	return nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	defer r.s.lock(ctx)()
	var all []model.Order
	for _, o := range r.s.st.orders {
		if o.BuyerID == buyerID {
			all = append(all, copyOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	offset, limit := pageBounds(page, pageSize)
	var out []*model.Order
	for _, o := range window(all, offset, limit) {
		o := o
		out = append(out, &o)
	}
	return out, int64(len(all)), nil
}
