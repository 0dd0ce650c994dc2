package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/model"
)

// OrderRepository order repository interface
type OrderRepository interface {
	// Create persists an order together with its items
	Create(ctx context.Context, order *model.Order) error

	// GetByID gets an order with its items
	GetByID(ctx context.Context, id uint64) (*model.Order, error)

	// GetForUpdate loads an order with an exclusive row lock, items included
	GetForUpdate(ctx context.Context, id uint64) (*model.Order, error)

	// GetByOrderNumber gets an order by its public number
	GetByOrderNumber(ctx context.Context, number string) (*model.Order, error)

	// UpdateState writes the order columns. Items are immutable and left untouched.
	UpdateState(ctx context.Context, order *model.Order) error

	// ListByBuyer lists a buyer's orders, newest first
	ListByBuyer(ctx context.Context, buyerID uint64, page, pageSize int) ([]*model.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	db := conn(ctx, r.db)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return translate(err)
	}
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	return translate(db.Create(&order.Items).Error)
}

func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("listing_id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	var items []model.OrderItem
	err = conn(ctx, r.db).
		Where("order_id = ?", id).
		Order("listing_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, translate(err)
	}
	order.Items = items
	return &order, nil
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, number string) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).
		Preload("Items").
		Where("order_number = ?", number).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) UpdateState(ctx context.Context, order *model.Order) error {
	result := conn(ctx, r.db).Omit(clause.Associations).Save(order)
	return translate(result.Error)
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64
	offset, limit := pageBounds(page, pageSize)

	query := func() *gorm.DB {
		return conn(ctx, r.db).Model(&model.Order{}).Where("buyer_id = ?", buyerID)
	}
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	err := query().Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return orders, total, nil
}
