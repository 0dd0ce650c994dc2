package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus whether a listing accepts new orders
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusInactive ListingStatus = "INACTIVE"
)

// Listing a seller's offer of a product with its stock counters.
// Counters change only through the inventory ledger, under a row lock,
// keeping 0 <= ReservedQuantity <= StockQuantity.
type Listing struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID         uint64          `gorm:"type:bigint unsigned;not null;index" json:"seller_id"`
	ProductID        uint64          `gorm:"type:bigint unsigned;not null;index" json:"product_id"`
	Title            string          `gorm:"type:varchar(200);not null" json:"title"`
	Price            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	StockQuantity    int             `gorm:"type:int;not null" json:"stock_quantity"`
	ReservedQuantity int             `gorm:"type:int;not null" json:"reserved_quantity"`
	Status           ListingStatus   `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt        time.Time       `gorm:"type:datetime(3);not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"type:datetime(3);not null" json:"updated_at"`
}

// TableName set name
func (Listing) TableName() string {
	return "listings"
}

// Available units that can still be reserved
func (l *Listing) Available() int {
	return l.StockQuantity - l.ReservedQuantity
}

// IsActive check listing accepts orders
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}
