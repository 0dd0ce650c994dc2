package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/repository"
	"marketplace/pkg/log"
)

var (
	// ErrInvalidQuantity quantity must be positive
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInsufficientStock not enough available units
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrListingNotFound listing does not exist
	ErrListingNotFound = errors.New("inventory: listing not found")
	// ErrReservationNotFound no reservation exists for the order
	ErrReservationNotFound = errors.New("inventory: reservation not found")
	// ErrReservationFinalized the reservation was already deducted or released
	ErrReservationFinalized = errors.New("inventory: reservation already finalized")
	// ErrReservationMismatch the line does not match the order's reservation
	ErrReservationMismatch = errors.New("inventory: quantity does not match reservation")
	// ErrInvalidAdjustment type is not a manual adjustment
	ErrInvalidAdjustment = errors.New("inventory: invalid adjustment type")
)

// OrderLine one order-keyed stock operation
type OrderLine struct {
	ListingID uint64
	Quantity  int
	OrderID   uint64
	ActorID   string
}

// AdjustRequest manual stock correction
type AdjustRequest struct {
	Type      model.InventoryTransactionType
	Quantity  int
	Reason    string
	Reference string
	ActorID   string
}

// Ledger mutates listing stock counters and writes one audit row per change.
// Every method joins the unit of work carried by ctx or opens its own.
type Ledger interface {
	// Reserve holds units for an order. Replaying the same order returns the
	// original row.
	Reserve(ctx context.Context, line OrderLine) (*model.InventoryTransaction, error)

	// Release gives back a reservation that was not deducted
	Release(ctx context.Context, line OrderLine) (*model.InventoryTransaction, error)

	// Deduct converts a reservation into a stock-out
	Deduct(ctx context.Context, line OrderLine) (*model.InventoryTransaction, error)

	// Adjust applies a manual correction
	Adjust(ctx context.Context, listingID uint64, req AdjustRequest) (*model.InventoryTransaction, error)

	// History lists the audit rows of a listing, newest first
	History(ctx context.Context, listingID uint64, limit int) ([]*model.InventoryTransaction, error)

	// OrderHistory lists the audit rows written for an order
	OrderHistory(ctx context.Context, orderID uint64) ([]*model.InventoryTransaction, error)
}

type ledger struct {
	uow      repository.UnitOfWork
	listings repository.ListingRepository
	txs      repository.InventoryTransactionRepository
	metrics  *monitor.Metrics
	now      func() time.Time
}

// NewLedger creates an inventory ledger
func NewLedger(
	uow repository.UnitOfWork,
	listings repository.ListingRepository,
	txs repository.InventoryTransactionRepository,
	metrics *monitor.Metrics,
) Ledger {
	return &ledger{
		uow:      uow,
		listings: listings,
		txs:      txs,
		metrics:  metrics,
		now:      time.Now,
	}
}

// lockListing loads the listing under a row lock
func (l *ledger) lockListing(ctx context.Context, id uint64) (*model.Listing, error) {
	listing, err := l.listings.GetForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, id)
	}
	return listing, err
}

// existing returns the row already written for (listing, order, type), if any
func (l *ledger) existing(ctx context.Context, line OrderLine, typ model.InventoryTransactionType) (*model.InventoryTransaction, error) {
	row, err := l.txs.FindByOrder(ctx, line.ListingID, line.OrderID, typ)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return row, err
}

// openReservation checks that the order holds a reservation of exactly
// line.Quantity that has not been closed by the other terminal operation, and
// that the listing still carries it
func (l *ledger) openReservation(ctx context.Context, listing *model.Listing, line OrderLine, closedBy model.InventoryTransactionType) error {
	reservation, err := l.existing(ctx, line, model.InventoryReserved)
	if err != nil {
		return err
	}
	if reservation == nil {
		return fmt.Errorf("%w: listing %d order %d", ErrReservationNotFound, line.ListingID, line.OrderID)
	}
	if held := -reservation.Quantity; held != line.Quantity {
		return fmt.Errorf("%w: listing %d order %d reserved %d, got %d",
			ErrReservationMismatch, line.ListingID, line.OrderID, held, line.Quantity)
	}
	closed, err := l.existing(ctx, line, closedBy)
	if err != nil {
		return err
	}
	if closed != nil {
		return fmt.Errorf("%w: listing %d order %d", ErrReservationFinalized, line.ListingID, line.OrderID)
	}
	if listing.ReservedQuantity < line.Quantity {
		return fmt.Errorf("%w: listing %d reserved %d, need %d",
			ErrInsufficientStock, listing.ID, listing.ReservedQuantity, line.Quantity)
	}
	return nil
}

// apply writes the new counters and the audit row. A duplicate key means a
// concurrent writer applied the same operation first, which is success.
func (l *ledger) apply(ctx context.Context, listing *model.Listing, row *model.InventoryTransaction, stock, reserved int) (*model.InventoryTransaction, error) {
	row.ListingID = listing.ID
	row.PreviousQuantity = listing.StockQuantity
	row.NewQuantity = stock
	row.PreviousReserved = listing.ReservedQuantity
	row.NewReserved = reserved
	row.CreatedAt = l.now()

	if err := l.txs.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("write inventory transaction: %w", err)
	}
	if err := l.listings.UpdateQuantities(ctx, listing.ID, stock, reserved); err != nil {
		return nil, fmt.Errorf("update listing quantities: %w", err)
	}
	listing.StockQuantity = stock
	listing.ReservedQuantity = reserved
	return row, nil
}

// run wraps an order-keyed operation: unit of work, duplicate-key
// reconciliation, metrics and logging
func (l *ledger) run(ctx context.Context, line OrderLine, typ model.InventoryTransactionType, op func(ctx context.Context) (*model.InventoryTransaction, bool, error)) (*model.InventoryTransaction, error) {
	if line.Quantity <= 0 {
		l.metrics.InventoryOp(string(typ), "rejected")
		return nil, ErrInvalidQuantity
	}

	var (
		row      *model.InventoryTransaction
		replayed bool
	)
	err := l.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		row, replayed, err = op(ctx)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		row, err = l.txs.FindByOrder(ctx, line.ListingID, line.OrderID, typ)
		replayed = true
	}
	if err != nil {
		l.metrics.InventoryOp(string(typ), "rejected")
		log.WithFields(logrus.Fields{
			"listing_id": line.ListingID,
			"order_id":   line.OrderID,
			"type":       typ,
			"quantity":   line.Quantity,
		}).WithError(err).Warn("Inventory operation rejected")
		return nil, err
	}

	result := "applied"
	if replayed {
		result = "replayed"
	}
	l.metrics.InventoryOp(string(typ), result)
	log.WithFields(logrus.Fields{
		"listing_id": line.ListingID,
		"order_id":   line.OrderID,
		"type":       typ,
		"quantity":   line.Quantity,
		"result":     result,
	}).Debug("Inventory operation")
	return row, nil
}

func (l *ledger) Reserve(ctx context.Context, line OrderLine) (*model.InventoryTransaction, error) {
	return l.run(ctx, line, model.InventoryReserved, func(ctx context.Context) (*model.InventoryTransaction, bool, error) {
		listing, err := l.lockListing(ctx, line.ListingID)
		if err != nil {
			return nil, false, err
		}
		if row, err := l.existing(ctx, line, model.InventoryReserved); err != nil || row != nil {
			return row, row != nil, err
		}
		if listing.Available() < line.Quantity {
			return nil, false, fmt.Errorf("%w: listing %d has %d available, need %d",
				ErrInsufficientStock, listing.ID, listing.Available(), line.Quantity)
		}

		orderID := line.OrderID
		row, err := l.apply(ctx, listing, &model.InventoryTransaction{
			OrderID:  &orderID,
			Type:     model.InventoryReserved,
			Quantity: -line.Quantity,
			Reason:   "order reservation",
			ActorID:  line.ActorID,
		}, listing.StockQuantity, listing.ReservedQuantity+line.Quantity)
		return row, false, err
	})
}

func (l *ledger) Release(ctx context.Context, line OrderLine) (*model.InventoryTransaction, error) {
	return l.run(ctx, line, model.InventoryReleased, func(ctx context.Context) (*model.InventoryTransaction, bool, error) {
		listing, err := l.lockListing(ctx, line.ListingID)
		if err != nil {
			return nil, false, err
		}
		if row, err := l.existing(ctx, line, model.InventoryReleased); err != nil || row != nil {
			return row, row != nil, err
		}
		if err := l.openReservation(ctx, listing, line, model.InventoryStockOut); err != nil {
			return nil, false, err
		}

		orderID := line.OrderID
		row, err := l.apply(ctx, listing, &model.InventoryTransaction{
			OrderID:  &orderID,
			Type:     model.InventoryReleased,
			Quantity: line.Quantity,
			Reason:   "order reservation released",
			ActorID:  line.ActorID,
		}, listing.StockQuantity, listing.ReservedQuantity-line.Quantity)
		return row, false, err
	})
}

func (l *ledger) Deduct(ctx context.Context, line OrderLine) (*model.InventoryTransaction, error) {
	return l.run(ctx, line, model.InventoryStockOut, func(ctx context.Context) (*model.InventoryTransaction, bool, error) {
		listing, err := l.lockListing(ctx, line.ListingID)
		if err != nil {
			return nil, false, err
		}
		if row, err := l.existing(ctx, line, model.InventoryStockOut); err != nil || row != nil {
			return row, row != nil, err
		}
		if err := l.openReservation(ctx, listing, line, model.InventoryReleased); err != nil {
			return nil, false, err
		}
		if listing.StockQuantity < line.Quantity {
			return nil, false, fmt.Errorf("%w: listing %d stock %d, need %d",
				ErrInsufficientStock, listing.ID, listing.StockQuantity, line.Quantity)
		}

		orderID := line.OrderID
		row, err := l.apply(ctx, listing, &model.InventoryTransaction{
			OrderID:  &orderID,
			Type:     model.InventoryStockOut,
			Quantity: -line.Quantity,
			Reason:   "order paid",
			ActorID:  line.ActorID,
		}, listing.StockQuantity-line.Quantity, listing.ReservedQuantity-line.Quantity)
		return row, false, err
	})
}

func (l *ledger) Adjust(ctx context.Context, listingID uint64, req AdjustRequest) (*model.InventoryTransaction, error) {
	if !req.Type.IsManual() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAdjustment, req.Type)
	}
	qty := req.Quantity
	if qty < 0 {
		qty = -qty
	}
	if qty == 0 {
		return nil, ErrInvalidQuantity
	}
	delta := qty
	if !req.Type.Increases() {
		delta = -qty
	}

	var row *model.InventoryTransaction
	err := l.uow.RunInTx(ctx, func(ctx context.Context) error {
		listing, err := l.lockListing(ctx, listingID)
		if err != nil {
			return err
		}
		stock := listing.StockQuantity + delta
		if stock < 0 || stock < listing.ReservedQuantity {
			return fmt.Errorf("%w: listing %d stock %d reserved %d, change %d",
				ErrInsufficientStock, listing.ID, listing.StockQuantity, listing.ReservedQuantity, delta)
		}
		row, err = l.apply(ctx, listing, &model.InventoryTransaction{
			Type:      req.Type,
			Quantity:  delta,
			Reason:    req.Reason,
			Reference: req.Reference,
			ActorID:   req.ActorID,
		}, stock, listing.ReservedQuantity)
		return err
	})
	if err != nil {
		l.metrics.InventoryOp(string(req.Type), "rejected")
		return nil, err
	}

	l.metrics.InventoryOp(string(req.Type), "applied")
	log.WithFields(logrus.Fields{
		"listing_id": listingID,
		"type":       req.Type,
		"quantity":   delta,
		"actor_id":   req.ActorID,
	}).Info("Stock adjusted")
	return row, nil
}

func (l *ledger) History(ctx context.Context, listingID uint64, limit int) ([]*model.InventoryTransaction, error) {
	if _, err := l.listings.GetByID(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrListingNotFound, listingID)
		}
		return nil, err
	}
	return l.txs.ListByListing(ctx, listingID, limit)
}

func (l *ledger) OrderHistory(ctx context.Context, orderID uint64) ([]*model.InventoryTransaction, error) {
	return l.txs.ListByOrder(ctx, orderID)
}
