package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/model"
)

// ListingRepository listing repository interface
type ListingRepository interface {
	// Create creates a listing
	Create(ctx context.Context, listing *model.Listing) error

	// GetByID gets a listing without locking it
	GetByID(ctx context.Context, id uint64) (*model.Listing, error)

	// GetForUpdate loads a listing with an exclusive row lock
	GetForUpdate(ctx context.Context, id uint64) (*model.Listing, error)

	// GetManyForUpdate locks several listings in ascending id order.
	// Missing ids are simply absent from the result.
	GetManyForUpdate(ctx context.Context, ids []uint64) ([]*model.Listing, error)

	// UpdateQuantities writes both stock counters of a locked listing
	UpdateQuantities(ctx context.Context, id uint64, stock, reserved int) error
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a listing repository
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, listing *model.Listing) error {
	return translate(conn(ctx, r.db).Create(listing).Error)
}

func (r *listingRepository) GetByID(ctx context.Context, id uint64) (*model.Listing, error) {
	var listing model.Listing
	if err := conn(ctx, r.db).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *listingRepository) GetForUpdate(ctx context.Context, id uint64) (*model.Listing, error) {
	var listing model.Listing
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *listingRepository) GetManyForUpdate(ctx context.Context, ids []uint64) ([]*model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var listings []*model.Listing
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&listings).Error
	if err != nil {
		return nil, translate(err)
	}
	return listings, nil
}

func (r *listingRepository) UpdateQuantities(ctx context.Context, id uint64, stock, reserved int) error {
	result := conn(ctx, r.db).
		Model(&model.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock_quantity":    stock,
			"reserved_quantity": reserved,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
