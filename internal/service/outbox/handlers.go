package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"marketplace/internal/model"
	"marketplace/internal/service/inventory"
	"marketplace/internal/service/wallet"
)

var (
	// ErrUnknownEventKind no handler exists for the stored event type
	ErrUnknownEventKind = errors.New("outbox: unknown event kind")
	// ErrMalformedPayload the payload cannot be decoded
	ErrMalformedPayload = errors.New("outbox: malformed payload")
)

// Handlers one method per event kind. Adding a kind to model.EventKinds
// without extending this interface and Dispatch fails the registry test.
type Handlers interface {
	OrderCreated(ctx context.Context, p model.OrderEventPayload) error
	OrderCancelled(ctx context.Context, p model.OrderEventPayload) error
	OrderPaid(ctx context.Context, p model.OrderEventPayload) error
}

// Permanent reports whether retrying err can never succeed
func Permanent(err error) bool {
	return errors.Is(err, ErrUnknownEventKind) || errors.Is(err, ErrMalformedPayload)
}

// Dispatch decodes the payload of e and calls the matching handler
func Dispatch(ctx context.Context, h Handlers, e *model.Event) error {
	kind, ok := model.ParseEventKind(string(e.EventType))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.EventType)
	}

	var payload model.OrderEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch kind {
	case model.EventOrderCreated:
		return h.OrderCreated(ctx, payload)
	case model.EventOrderCancelled:
		return h.OrderCancelled(ctx, payload)
	case model.EventOrderPaid:
		return h.OrderPaid(ctx, payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}
}

// StockLedger the inventory operations the handlers replay
type StockLedger interface {
	Reserve(ctx context.Context, line inventory.OrderLine) (*model.InventoryTransaction, error)
	Release(ctx context.Context, line inventory.OrderLine) (*model.InventoryTransaction, error)
	Deduct(ctx context.Context, line inventory.OrderLine) (*model.InventoryTransaction, error)
}

// Settler settles a paid order into the wallet ledger
type Settler interface {
	SettleOrder(ctx context.Context, s wallet.Settlement) (*wallet.SettlementResult, error)
}

// LedgerHandlers applies order events to the inventory and wallet ledgers.
// Every call is idempotent, so redelivery after a crash is harmless.
type LedgerHandlers struct {
	Stock   StockLedger
	Wallet  Settler
	ActorID string
}

// NewLedgerHandlers creates the production handler set
func NewLedgerHandlers(stock StockLedger, settler Settler) *LedgerHandlers {
	return &LedgerHandlers{Stock: stock, Wallet: settler, ActorID: "system:outbox"}
}

var _ Handlers = (*LedgerHandlers)(nil)

// lines returns the order lines sorted by listing id, the global lock order
func (h *LedgerHandlers) lines(p model.OrderEventPayload) []inventory.OrderLine {
	out := make([]inventory.OrderLine, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, inventory.OrderLine{
			ListingID: it.ListingID,
			Quantity:  it.Quantity,
			OrderID:   p.OrderID,
			ActorID:   h.ActorID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return out
}

func (h *LedgerHandlers) each(ctx context.Context, p model.OrderEventPayload, op func(context.Context, inventory.OrderLine) (*model.InventoryTransaction, error)) error {
	for _, line := range h.lines(p) {
		if _, err := op(ctx, line); err != nil {
			return fmt.Errorf("order %d listing %d: %w", p.OrderID, line.ListingID, err)
		}
	}
	return nil
}

func (h *LedgerHandlers) OrderCreated(ctx context.Context, p model.OrderEventPayload) error {
	return h.each(ctx, p, h.Stock.Reserve)
}

func (h *LedgerHandlers) OrderCancelled(ctx context.Context, p model.OrderEventPayload) error {
	return h.each(ctx, p, h.Stock.Release)
}

func (h *LedgerHandlers) OrderPaid(ctx context.Context, p model.OrderEventPayload) error {
	if err := h.each(ctx, p, h.Stock.Deduct); err != nil {
		return err
	}
	_, err := h.Wallet.SettleOrder(ctx, wallet.Settlement{
		OrderID:  p.OrderID,
		SellerID: p.SellerID,
		Subtotal: p.Subtotal,
		Total:    p.Total,
	})
	return err
}
