// Package memory keeps every repository in process memory. It backs the
// service tests and the `memory` database driver. A single mutex serialises
// transactions, which is at least as strict as row locking, and a transaction
// that fails is rolled back by restoring a snapshot taken when it began.
package memory

import (
	"context"
	"sync"
	"time"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type state struct {
	nextListingID uint64
	nextInvTxID   uint64
	nextItemID    uint64
	nextWalletID  uint64
	listings      map[uint64]model.Listing
	orders        map[uint64]model.Order
	inventory     []model.InventoryTransaction
	events        map[string]model.Event
	eventOrder    []string
	wallet        map[uint64]model.WalletLedgerEntry
}

func newState() *state {
	return &state{
		nextListingID: 1,
		nextInvTxID:   1,
		nextItemID:    1,
		nextWalletID:  1,
		listings:      make(map[uint64]model.Listing),
		orders:        make(map[uint64]model.Order),
		events:        make(map[string]model.Event),
		wallet:        make(map[uint64]model.WalletLedgerEntry),
	}
}

func (s *state) clone() *state {
	c := *s
	c.listings = make(map[uint64]model.Listing, len(s.listings))
	for k, v := range s.listings {
		c.listings[k] = v
	}
	c.orders = make(map[uint64]model.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	c.inventory = append([]model.InventoryTransaction(nil), s.inventory...)
	c.events = make(map[string]model.Event, len(s.events))
	for k, v := range s.events {
		c.events[k] = copyEvent(v)
	}
	c.eventOrder = append([]string(nil), s.eventOrder...)
	c.wallet = make(map[uint64]model.WalletLedgerEntry, len(s.wallet))
	for k, v := range s.wallet {
		c.wallet[k] = v
	}
	return &c
}

// Store in-memory implementation of every repository interface
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

type memTx struct {
	store *Store
}

// inTx reports whether ctx carries a transaction of this store, in which case
// the mutex is already held
func (s *Store) inTx(ctx context.Context) bool {
	h, ok := repository.TxHandle(ctx)
	if !ok {
		return false
	}
	tx, ok := h.(*memTx)
	return ok && tx.store == s
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTx implements repository.UnitOfWork
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if repository.InTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err := fn(repository.ContextWithTx(ctx, &memTx{store: s})); err != nil {
		return err
	}
	committed = true
	return nil
}

// Listings listing repository view
func (s *Store) Listings() repository.ListingRepository { return &listingRepo{s} }

// Orders order repository view
func (s *Store) Orders() repository.OrderRepository { return &orderRepo{s} }

// InventoryTransactions inventory audit repository view
func (s *Store) InventoryTransactions() repository.InventoryTransactionRepository {
	return &inventoryRepo{s}
}

// Events outbox repository view
func (s *Store) Events() repository.EventRepository { return &eventRepo{s} }

// Wallet wallet ledger repository view
func (s *Store) Wallet() repository.WalletRepository { return &walletRepo{s} }

var _ repository.UnitOfWork = (*Store)(nil)

func copyOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o
}

func copyEvent(e model.Event) model.Event {
	e.Payload = append(model.JSON(nil), e.Payload...)
	if e.Metadata != nil {
		e.Metadata = append(model.JSON(nil), e.Metadata...)
	}
	return e
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	return (page - 1) * size, size
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
