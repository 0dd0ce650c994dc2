package model

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind enumerates the domain events written to the outbox
type EventKind string

const (
	EventOrderCreated   EventKind = "ORDER_CREATED"
	EventOrderCancelled EventKind = "ORDER_CANCELLED"
	EventOrderPaid      EventKind = "ORDER_PAID"
)

// EventKinds lists every kind the processor knows how to dispatch
var EventKinds = []EventKind{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderPaid,
}

// ParseEventKind validates a stored event type
func ParseEventKind(s string) (EventKind, bool) {
	for _, k := range EventKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// AggregateOrder aggregate type for order events
const AggregateOrder = "order"

// Event outbox row. Written in the same transaction as the state change it
// describes and never deleted. New columns must stay nullable or defaulted
// because unprocessed rows survive deployments.
type Event struct {
	ID                 string     `gorm:"type:char(36);primaryKey" json:"id"`
	EventType          EventKind  `gorm:"type:varchar(40);not null;index" json:"event_type"`
	AggregateType      string     `gorm:"type:varchar(40);not null;index:idx_events_aggregate,priority:1" json:"aggregate_type"`
	AggregateID        string     `gorm:"type:varchar(64);not null;index:idx_events_aggregate,priority:2" json:"aggregate_id"`
	Payload            JSON       `gorm:"type:json;not null" json:"payload"`
	Metadata           JSON       `gorm:"type:json" json:"metadata,omitempty"`
	Processed          bool       `gorm:"not null;index:idx_events_pending,priority:1" json:"processed"`
	ProcessingAttempts int        `gorm:"not null" json:"processing_attempts"`
	LastError          *string    `gorm:"type:text" json:"last_error,omitempty"`
	ProcessedAt        *time.Time `gorm:"type:datetime(6)" json:"processed_at,omitempty"`
	QuarantinedAt      *time.Time `gorm:"type:datetime(6);index:idx_events_pending,priority:2" json:"quarantined_at,omitempty"`
	CreatedAt          time.Time  `gorm:"type:datetime(6);not null;index:idx_events_pending,priority:3" json:"created_at"`
}

// TableName set name
func (Event) TableName() string {
	return "events"
}

// IsQuarantined the processor gave up on the event
func (e *Event) IsQuarantined() bool {
	return e.QuarantinedAt != nil
}

// IsPending the processor will still pick the event up
func (e *Event) IsPending() bool {
	return !e.Processed && e.QuarantinedAt == nil
}

// OrderEventItem line carried by order events
type OrderEventItem struct {
	ListingID uint64          `json:"listing_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderEventPayload body of every order event kind
type OrderEventPayload struct {
	OrderID     uint64           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	BuyerID     uint64           `json:"buyer_id"`
	SellerID    uint64           `json:"seller_id"`
	State       OrderState       `json:"state"`
	Currency    string           `json:"currency"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Total       decimal.Decimal  `json:"total"`
	Items       []OrderEventItem `json:"items"`
}

// NewOrderEventPayload snapshots an order for publishing
func NewOrderEventPayload(o *Order) OrderEventPayload {
	items := make([]OrderEventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderEventItem{
			ListingID: it.ListingID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return OrderEventPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		State:       o.State,
		Currency:    o.Currency,
		Subtotal:    o.Subtotal,
		Total:       o.Total,
		Items:       items,
	}
}

// EventMetadata tracing and audit context attached to an event
type EventMetadata struct {
	ActorID       string    `json:"actor_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// JSON raw JSON column
type JSON []byte

// Value implements driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner. The driver buffer is copied because it is
// reused after the row is scanned.
func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("model: cannot scan %T into JSON", value)
	}
	return nil
}

// MarshalJSON emits the raw document
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps a copy of the raw document
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("model: UnmarshalJSON on nil JSON")
	}
	if bytes.Equal(data, []byte("null")) {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], data...)
	return nil
}
