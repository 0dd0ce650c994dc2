package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState order lifecycle state
type OrderState string

const (
	OrderStateCreated         OrderState = "CREATED"
	OrderStatePaymentPending  OrderState = "PAYMENT_PENDING"
	OrderStatePaid            OrderState = "PAID"
	OrderStateProcessing      OrderState = "PROCESSING"
	OrderStateShipped         OrderState = "SHIPPED"
	OrderStateDelivered       OrderState = "DELIVERED"
	OrderStateCompleted       OrderState = "COMPLETED"
	OrderStateCancelled       OrderState = "CANCELLED"
	OrderStateReturnRequested OrderState = "RETURN_REQUESTED"
	OrderStateReturned        OrderState = "RETURNED"
	OrderStateRefunded        OrderState = "REFUNDED"
)

// OrderStates lists every state in lifecycle order
var OrderStates = []OrderState{
	OrderStateCreated,
	OrderStatePaymentPending,
	OrderStatePaid,
	OrderStateProcessing,
	OrderStateShipped,
	OrderStateDelivered,
	OrderStateCompleted,
	OrderStateCancelled,
	OrderStateReturnRequested,
	OrderStateReturned,
	OrderStateRefunded,
}

// Valid reports whether s is a known state
func (s OrderState) Valid() bool {
	for _, known := range OrderStates {
		if s == known {
			return true
		}
	}
	return false
}

// Address shipping address snapshot, embedded into orders
type Address struct {
	RecipientName string `gorm:"type:varchar(100);not null" json:"recipient_name"`
	Line1         string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2         string `gorm:"type:varchar(255)" json:"line2,omitempty"`
	City          string `gorm:"type:varchar(100);not null" json:"city"`
	Region        string `gorm:"type:varchar(100)" json:"region,omitempty"`
	PostalCode    string `gorm:"type:varchar(20)" json:"postal_code,omitempty"`
	Country       string `gorm:"type:char(2);not null" json:"country"`
	Phone         string `gorm:"type:varchar(32)" json:"phone,omitempty"`
}

// Order order model. Exactly one seller per order; rows are never deleted.
type Order struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement:false;comment:snowflake id" json:"id"`
	OrderNumber    string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_number"`
	BuyerID        uint64          `gorm:"type:bigint unsigned;not null;index:idx_orders_buyer_created,priority:1" json:"buyer_id"`
	SellerID       uint64          `gorm:"type:bigint unsigned;not null;index" json:"seller_id"`
	State          OrderState      `gorm:"type:varchar(20);not null;index" json:"state"`
	PreviousState  *OrderState     `gorm:"type:varchar(20)" json:"previous_state,omitempty"`
	StateChangedAt time.Time       `gorm:"type:datetime(3);not null" json:"state_changed_at"`
	Currency       string          `gorm:"type:char(3);not null" json:"currency"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	Tax            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax"`
	ShippingFee    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"shipping_fee"`
	Discount       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"discount"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	PaymentReference *string `gorm:"type:varchar(64);uniqueIndex" json:"payment_reference,omitempty"`
	CancelReason     *string `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	LastActorID      string  `gorm:"type:varchar(64)" json:"last_actor_id"`

	PaymentPendingAt  *time.Time `gorm:"type:datetime(3)" json:"payment_pending_at,omitempty"`
	PaidAt            *time.Time `gorm:"type:datetime(3)" json:"paid_at,omitempty"`
	ProcessingAt      *time.Time `gorm:"type:datetime(3)" json:"processing_at,omitempty"`
	ShippedAt         *time.Time `gorm:"type:datetime(3)" json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time `gorm:"type:datetime(3)" json:"delivered_at,omitempty"`
	CompletedAt       *time.Time `gorm:"type:datetime(3)" json:"completed_at,omitempty"`
	CancelledAt       *time.Time `gorm:"type:datetime(3)" json:"cancelled_at,omitempty"`
	ReturnRequestedAt *time.Time `gorm:"type:datetime(3)" json:"return_requested_at,omitempty"`
	ReturnedAt        *time.Time `gorm:"type:datetime(3)" json:"returned_at,omitempty"`
	RefundedAt        *time.Time `gorm:"type:datetime(3)" json:"refunded_at,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null;index:idx_orders_buyer_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// StampState records when the order entered s
func (o *Order) StampState(s OrderState, at time.Time) {
	t := at
	switch s {
	case OrderStatePaymentPending:
		o.PaymentPendingAt = &t
	case OrderStatePaid:
		o.PaidAt = &t
	case OrderStateProcessing:
		o.ProcessingAt = &t
	case OrderStateShipped:
		o.ShippedAt = &t
	case OrderStateDelivered:
		o.DeliveredAt = &t
	case OrderStateCompleted:
		o.CompletedAt = &t
	case OrderStateCancelled:
		o.CancelledAt = &t
	case OrderStateReturnRequested:
		o.ReturnRequestedAt = &t
	case OrderStateReturned:
		o.ReturnedAt = &t
	case OrderStateRefunded:
		o.RefundedAt = &t
	}
}

// OrderItem immutable snapshot of the listing at checkout time
type OrderItem struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint64          `gorm:"type:bigint unsigned;not null;uniqueIndex:ux_order_items_order_listing,priority:1" json:"order_id"`
	ListingID uint64          `gorm:"type:bigint unsigned;not null;uniqueIndex:ux_order_items_order_listing,priority:2;index" json:"listing_id"`
	ProductID uint64          `gorm:"type:bigint unsigned;not null" json:"product_id"`
	SellerID  uint64          `gorm:"type:bigint unsigned;not null" json:"seller_id"`
	Title     string          `gorm:"type:varchar(200);not null" json:"title"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	LineTotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	CreatedAt time.Time       `gorm:"type:datetime(3);not null" json:"created_at"`
}

// TableName set name
func (OrderItem) TableName() string {
	return "order_items"
}
