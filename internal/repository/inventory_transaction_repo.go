package repository

import (
	"context"

	"gorm.io/gorm"

	"marketplace/internal/model"
)

// InventoryTransactionRepository append-only stock audit log
type InventoryTransactionRepository interface {
	// Create appends an audit row. Returns ErrDuplicate when the
	// (listing, order, type) key is already taken.
	Create(ctx context.Context, tx *model.InventoryTransaction) error

	// FindByOrder gets the row of one order-keyed operation
	FindByOrder(ctx context.Context, listingID, orderID uint64, typ model.InventoryTransactionType) (*model.InventoryTransaction, error)

	// ListByListing lists a listing's history, newest first
	ListByListing(ctx context.Context, listingID uint64, limit int) ([]*model.InventoryTransaction, error)

	// ListByOrder lists every row written for an order, oldest first
	ListByOrder(ctx context.Context, orderID uint64) ([]*model.InventoryTransaction, error)
}

type inventoryTransactionRepository struct {
	db *gorm.DB
}

// NewInventoryTransactionRepository creates an inventory transaction repository
func NewInventoryTransactionRepository(db *gorm.DB) InventoryTransactionRepository {
	return &inventoryTransactionRepository{db: db}
}

func (r *inventoryTransactionRepository) Create(ctx context.Context, tx *model.InventoryTransaction) error {
	return translate(conn(ctx, r.db).Create(tx).Error)
}

func (r *inventoryTransactionRepository) FindByOrder(ctx context.Context, listingID, orderID uint64, typ model.InventoryTransactionType) (*model.InventoryTransaction, error) {
	var row model.InventoryTransaction
	err := conn(ctx, r.db).
		Where("listing_id = ? AND order_id = ? AND type = ?", listingID, orderID, typ).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func (r *inventoryTransactionRepository) ListByListing(ctx context.Context, listingID uint64, limit int) ([]*model.InventoryTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*model.InventoryTransaction
	err := conn(ctx, r.db).
		Where("listing_id = ?", listingID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, translate(err)
}

func (r *inventoryTransactionRepository) ListByOrder(ctx context.Context, orderID uint64) ([]*model.InventoryTransaction, error) {
	var rows []*model.InventoryTransaction
	err := conn(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error
	return rows, translate(err)
}
