package model

import (
	"time"
)

// InventoryTransactionType kind of stock mutation
type InventoryTransactionType string

const (
	InventoryReserved   InventoryTransactionType = "RESERVED"
	InventoryReleased   InventoryTransactionType = "RELEASED"
	InventoryStockOut   InventoryTransactionType = "STOCK_OUT"
	InventoryStockIn    InventoryTransactionType = "STOCK_IN"
	InventoryAdjustment InventoryTransactionType = "ADJUSTMENT"
	InventoryDamaged    InventoryTransactionType = "DAMAGED"
	InventoryLost       InventoryTransactionType = "LOST"
	InventoryReturned   InventoryTransactionType = "RETURNED"
)

// IsManual reports whether t may be used for a manual adjustment
func (t InventoryTransactionType) IsManual() bool {
	switch t {
	case InventoryStockIn, InventoryAdjustment, InventoryDamaged, InventoryLost, InventoryReturned:
		return true
	}
	return false
}

// Increases reports whether a manual adjustment of type t adds stock
func (t InventoryTransactionType) Increases() bool {
	return t == InventoryStockIn || t == InventoryReturned
}

// InventoryTransaction append-only audit row for one stock mutation.
// (listing_id, order_id, type) is unique so an order-keyed operation can be
// applied at most once; manual adjustments carry no order id.
type InventoryTransaction struct {
	ID               uint64                   `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID        uint64                   `gorm:"type:bigint unsigned;not null;uniqueIndex:ux_inventory_tx_listing_order_type,priority:1;index:idx_inventory_tx_listing_created,priority:1" json:"listing_id"`
	OrderID          *uint64                  `gorm:"type:bigint unsigned;uniqueIndex:ux_inventory_tx_listing_order_type,priority:2;index" json:"order_id,omitempty"`
	Type             InventoryTransactionType `gorm:"type:varchar(16);not null;uniqueIndex:ux_inventory_tx_listing_order_type,priority:3" json:"type"`
	Quantity         int                      `gorm:"type:int;not null;comment:signed change of available units" json:"quantity"`
	PreviousQuantity int                      `gorm:"type:int;not null;comment:stock before" json:"previous_quantity"`
	NewQuantity      int                      `gorm:"type:int;not null;comment:stock after" json:"new_quantity"`
	PreviousReserved int                      `gorm:"type:int;not null" json:"previous_reserved"`
	NewReserved      int                      `gorm:"type:int;not null" json:"new_reserved"`
	Reason           string                   `gorm:"type:varchar(255)" json:"reason,omitempty"`
	Reference        string                   `gorm:"type:varchar(128)" json:"reference,omitempty"`
	ActorID          string                   `gorm:"type:varchar(64);not null" json:"actor_id"`
	CreatedAt        time.Time                `gorm:"type:datetime(3);not null;index:idx_inventory_tx_listing_created,priority:2" json:"created_at"`
}

// TableName set name
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}
