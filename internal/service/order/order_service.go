package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/repository"
	"marketplace/internal/service/inventory"
	"marketplace/internal/service/outbox"
	"marketplace/pkg/log"
)

var (
	// ErrEmptyOrder the request carries no items
	ErrEmptyOrder = errors.New("order: no items")
	// ErrInvalidQuantity an item quantity is not positive
	ErrInvalidQuantity = errors.New("order: quantity must be positive")
	// ErrInvalidDiscount the discount is negative
	ErrInvalidDiscount = errors.New("order: discount must not be negative")
	// ErrOrderNotFound order does not exist
	ErrOrderNotFound = errors.New("order: not found")
	// ErrListingNotFound a requested listing does not exist
	ErrListingNotFound = errors.New("order: listing not found")
	// ErrListingInactive a requested listing no longer sells
	ErrListingInactive = errors.New("order: listing inactive")
	// ErrMultipleSellers the cart spans more than one seller
	ErrMultipleSellers = errors.New("order: items belong to different sellers")
	// ErrCannotCancel the order is already paid or finished
	ErrCannotCancel = errors.New("order: cannot cancel")
	// ErrInvalidPaymentReference payment reference is missing
	ErrInvalidPaymentReference = errors.New("order: payment reference is required")
	// ErrDuplicatePayment the payment reference belongs to another order
	ErrDuplicatePayment = errors.New("order: payment reference already used")
)

// ItemRequest one cart line
type ItemRequest struct {
	ListingID uint64 `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest checkout request
type CreateOrderRequest struct {
	BuyerID  uint64
	Items    []ItemRequest
	Address  model.Address
	Discount decimal.Decimal
	ActorID  string
}

// Service order service interface
type Service interface {
	// Create checks out a cart: prices it, persists the order, reserves the
	// stock and publishes ORDER_CREATED in one transaction
	Create(ctx context.Context, req CreateOrderRequest) (*model.Order, error)

	// UpdateState moves an order one step through its lifecycle
	UpdateState(ctx context.Context, orderID uint64, next model.OrderState, actorID string) (*model.Order, error)

	// Cancel cancels an unpaid order and releases its reservations
	Cancel(ctx context.Context, orderID uint64, reason, actorID string) (*model.Order, error)

	// MarkPaid records a payment and moves the order to PAID
	MarkPaid(ctx context.Context, orderID uint64, paymentRef, actorID string) (*model.Order, error)

	// Get gets an order with its items
	Get(ctx context.Context, orderID uint64) (*model.Order, error)

	// GetByNumber gets an order by its public number
	GetByNumber(ctx context.Context, number string) (*model.Order, error)

	// ListByBuyer lists a buyer's orders, newest first
	ListByBuyer(ctx context.Context, buyerID uint64, page, pageSize int) ([]*model.Order, int64, error)
}

// Config checkout settings
type Config struct {
	Currency string
	Pricing  Pricing
}

type service struct {
	uow       repository.UnitOfWork
	orders    repository.OrderRepository
	listings  repository.ListingRepository
	stock     inventory.Ledger
	publisher outbox.Publisher
	numbers   *NumberGenerator
	metrics   *monitor.Metrics
	cfg       Config
	now       func() time.Time
}

// NewService creates an order service
func NewService(
	uow repository.UnitOfWork,
	orders repository.OrderRepository,
	listings repository.ListingRepository,
	stock inventory.Ledger,
	publisher outbox.Publisher,
	numbers *NumberGenerator,
	metrics *monitor.Metrics,
	cfg Config,
) Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &service{
		uow:       uow,
		orders:    orders,
		listings:  listings,
		stock:     stock,
		publisher: publisher,
		numbers:   numbers,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// normalizeLines validates the cart, merges repeated listings and sorts by
// listing id so listing locks are always taken in the same order
func normalizeLines(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	merged := make(map[uint64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: listing %d quantity %d", ErrInvalidQuantity, it.ListingID, it.Quantity)
		}
		merged[it.ListingID] += it.Quantity
	}
	out := make([]ItemRequest, 0, len(merged))
	for id, q := range merged {
		out = append(out, ItemRequest{ListingID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return out, nil
}

func (s *service) Create(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	lines, err := normalizeLines(req.Items)
	if err != nil {
		return nil, err
	}
	if req.Discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}

	var order *model.Order
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		ids := make([]uint64, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ListingID)
		}
		listings, err := s.listings.GetManyForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uint64]*model.Listing, len(listings))
		for _, l := range listings {
			byID[l.ID] = l
		}

		now := s.now()
		var sellerID uint64
		subtotal := decimal.Zero
		items := make([]model.OrderItem, 0, len(lines))
		for i, line := range lines {
			l, ok := byID[line.ListingID]
			if !ok {
				return fmt.Errorf("%w: %d", ErrListingNotFound, line.ListingID)
			}
			if !l.IsActive() {
				return fmt.Errorf("%w: %d", ErrListingInactive, l.ID)
			}
			if i == 0 {
				sellerID = l.SellerID
			} else if l.SellerID != sellerID {
				return ErrMultipleSellers
			}
			if l.Available() < line.Quantity {
				return fmt.Errorf("%w: listing %d available %d, requested %d",
					inventory.ErrInsufficientStock, l.ID, l.Available(), line.Quantity)
			}

			lineTotal := l.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, model.OrderItem{
				ListingID: l.ID,
				ProductID: l.ProductID,
				SellerID:  l.SellerID,
				Title:     l.Title,
				UnitPrice: l.Price,
				Quantity:  line.Quantity,
				LineTotal: lineTotal,
				CreatedAt: now,
			})
		}

		quote := s.cfg.Pricing.Quote(subtotal, req.Discount)
		id, number := s.numbers.Next()
		order = &model.Order{
			ID:              id,
			OrderNumber:     number,
			BuyerID:         req.BuyerID,
			SellerID:        sellerID,
			State:           model.OrderStateCreated,
			StateChangedAt:  now,
			Currency:        s.cfg.Currency,
			Subtotal:        quote.Subtotal,
			Tax:             quote.Tax,
			ShippingFee:     quote.ShippingFee,
			Discount:        quote.Discount,
			Total:           quote.Total,
			ShippingAddress: req.Address,
			LastActorID:     req.ActorID,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           items,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		if err := s.eachLine(ctx, order, req.ActorID, s.stock.Reserve); err != nil {
			return err
		}
		return s.publish(ctx, model.EventOrderCreated, order, req.ActorID)
	})
	if err != nil {
		log.WithFields(map[string]interface{}{
			"buyer_id": req.BuyerID,
			"items":    len(lines),
			"error":    err.Error(),
		}).Warn("Failed to create order")
		return nil, err
	}

	s.metrics.OrderCreated()
	log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     order.BuyerID,
		"seller_id":    order.SellerID,
		"total":        order.Total.String(),
	}).Info("Order created")
	return order, nil
}

func (s *service) UpdateState(ctx context.Context, orderID uint64, next model.OrderState, actorID string) (*model.Order, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, order *model.Order) ([]model.OrderState, error) {
		from := order.State
		if err := s.transition(ctx, order, next, actorID); err != nil {
			return nil, err
		}
		return []model.OrderState{from, next}, nil
	})
}

func (s *service) Cancel(ctx context.Context, orderID uint64, reason, actorID string) (*model.Order, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, order *model.Order) ([]model.OrderState, error) {
		from := order.State
		if !CanCancel(from) {
			return nil, fmt.Errorf("%w: order is %s", ErrCannotCancel, from)
		}
		if reason != "" {
			order.CancelReason = &reason
		}
		if err := s.transition(ctx, order, model.OrderStateCancelled, actorID); err != nil {
			return nil, err
		}
		return []model.OrderState{from, model.OrderStateCancelled}, nil
	})
}

func (s *service) MarkPaid(ctx context.Context, orderID uint64, paymentRef, actorID string) (*model.Order, error) {
	if paymentRef == "" {
		return nil, ErrInvalidPaymentReference
	}
	return s.mutate(ctx, orderID, func(ctx context.Context, order *model.Order) ([]model.OrderState, error) {
		path := []model.OrderState{order.State}
		if order.State == model.OrderStateCreated {
			if err := s.transition(ctx, order, model.OrderStatePaymentPending, actorID); err != nil {
				return nil, err
			}
			path = append(path, model.OrderStatePaymentPending)
		}
		order.PaymentReference = &paymentRef
		if err := s.transition(ctx, order, model.OrderStatePaid, actorID); err != nil {
			return nil, err
		}
		return append(path, model.OrderStatePaid), nil
	})
}

// mutate loads the order under a row lock and applies fn in one unit of
// work. fn returns the states the order walked through, for metrics.
func (s *service) mutate(ctx context.Context, orderID uint64, fn func(ctx context.Context, order *model.Order) ([]model.OrderState, error)) (*model.Order, error) {
	var (
		order *model.Order
		path  []model.OrderState
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, orderID)
		}
		path, err = fn(ctx, order)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		err = ErrDuplicatePayment
	}
	if err != nil {
		log.WithFields(map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		}).Warn("Order update rejected")
		return nil, err
	}

	for i := 1; i < len(path); i++ {
		s.metrics.OrderTransition(string(path[i-1]), string(path[i]))
	}
	log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"state":        order.State,
		"actor_id":     order.LastActorID,
	}).Info("Order state updated")
	return order, nil
}

// transition validates and applies one step, then runs its stock side
// effects and publishes the matching event in the caller's transaction
func (s *service) transition(ctx context.Context, order *model.Order, next model.OrderState, actorID string) error {
	if err := ValidateTransition(order.State, next); err != nil {
		return err
	}

	now := s.now()
	prev := order.State
	order.PreviousState = &prev
	order.State = next
	order.StateChangedAt = now
	order.StampState(next, now)
	order.LastActorID = actorID
	if err := s.orders.UpdateState(ctx, order); err != nil {
		return err
	}

	switch next {
	case model.OrderStatePaid:
		if err := s.eachLine(ctx, order, actorID, s.stock.Deduct); err != nil {
			return err
		}
		return s.publish(ctx, model.EventOrderPaid, order, actorID)
	case model.OrderStateCancelled:
		if err := s.eachLine(ctx, order, actorID, s.stock.Release); err != nil {
			return err
		}
		return s.publish(ctx, model.EventOrderCancelled, order, actorID)
	}
	return nil
}

func (s *service) eachLine(ctx context.Context, order *model.Order, actorID string, op func(context.Context, inventory.OrderLine) (*model.InventoryTransaction, error)) error {
	items := append([]model.OrderItem(nil), order.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ListingID < items[j].ListingID })
	for _, it := range items {
		_, err := op(ctx, inventory.OrderLine{
			ListingID: it.ListingID,
			Quantity:  it.Quantity,
			OrderID:   order.ID,
			ActorID:   actorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) publish(ctx context.Context, kind model.EventKind, order *model.Order, actorID string) error {
	_, err := s.publisher.Publish(ctx, kind, model.AggregateOrder, strconv.FormatUint(order.ID, 10),
		model.NewOrderEventPayload(order),
		model.EventMetadata{ActorID: actorID, CorrelationID: order.OrderNumber, OccurredAt: order.StateChangedAt})
	return err
}

func (s *service) Get(ctx context.Context, orderID uint64) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, orderID)
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	order, err := s.orders.GetByOrderNumber(ctx, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
	}
	return order, err
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orders.ListByBuyer(ctx, buyerID, page, pageSize)
}

func notFound(err error, orderID uint64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return err
}
