package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

func seedListing(t *testing.T, s *Store, stock int) *model.Listing {
	t.Helper()
	l := &model.Listing{SellerID: 1, Title: "Lamp", Price: decimal.NewFromInt(10), StockQuantity: stock, Status: model.ListingStatusActive}
	require.NoError(t, s.Listings().Create(context.Background(), l))
	return l
}

func TestStore_RunInTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 5)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Listings().UpdateQuantities(ctx, l.ID, 5, 3))
		orderID := uint64(9)
		require.NoError(t, s.InventoryTransactions().Create(ctx, &model.InventoryTransaction{
			ListingID: l.ID, OrderID: &orderID, Type: model.InventoryReserved, Quantity: -3,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Listings().GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedQuantity)

	rows, err := s.InventoryTransactions().ListByListing(ctx, l.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_RunInTx_Commit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	l := seedListing(t, s, 5)

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		assert.True(t, repository.InTx(ctx))
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Listings().UpdateQuantities(ctx, l.ID, 4, 1)
		})
	})
	require.NoError(t, err)

	got, err := s.Listings().GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StockQuantity)
	assert.Equal(t, 1, got.ReservedQuantity)
}

func TestStore_RunInTx_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInventory_UniqueOrderKey(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.InventoryTransactions()
	orderID := uint64(7)

	require.NoError(t, repo.Create(ctx, &model.InventoryTransaction{ListingID: 1, OrderID: &orderID, Type: model.InventoryReserved}))
	err := repo.Create(ctx, &model.InventoryTransaction{ListingID: 1, OrderID: &orderID, Type: model.InventoryReserved})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// manual adjustments carry no order id and never collide
	require.NoError(t, repo.Create(ctx, &model.InventoryTransaction{ListingID: 1, Type: model.InventoryStockIn}))
	require.NoError(t, repo.Create(ctx, &model.InventoryTransaction{ListingID: 1, Type: model.InventoryStockIn}))

	row, err := repo.FindByOrder(ctx, 1, orderID, model.InventoryReserved)
	require.NoError(t, err)
	assert.Equal(t, orderID, *row.OrderID)
}

func TestOrders_CreateAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Orders()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.Order{
			ID:          i,
			OrderNumber: "MK-" + string(rune('A'+i)),
			BuyerID:     5,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Items:       []model.OrderItem{{ListingID: i, Quantity: 1}},
		}))
	}
	err := repo.Create(ctx, &model.Order{ID: 4, OrderNumber: "MK-B", BuyerID: 5})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	orders, total, err := repo.ListByBuyer(ctx, 5, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 2)
	assert.Equal(t, uint64(3), orders[0].ID)
	assert.Equal(t, uint64(2), orders[1].ID)

	got, err := repo.GetByOrderNumber(ctx, "MK-B")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, uint64(1), got.Items[0].OrderID)
}

func TestEvents_PendingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Events()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Event{ID: id, EventType: model.EventOrderCreated, AggregateType: model.AggregateOrder, AggregateID: "1", Payload: model.JSON(`{}`)}))
	}

	now := time.Now()
	require.NoError(t, repo.MarkProcessed(ctx, "a", now))
	attempts, err := repo.RecordFailure(ctx, "b", "timeout", &now)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].ID)

	_, err = repo.LockPending(ctx, "b")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := repo.ResetFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err = repo.ResetByAggregate(ctx, model.AggregateOrder, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	count, err = repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestWallet_SumsAndScopes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Wallet()
	seller := uint64(3)
	other := uint64(4)

	add := func(sellerID *uint64, kind model.AccountKind, amount int64, status model.EntryStatus, typ model.EntryType) {
		require.NoError(t, repo.Create(ctx, &model.WalletLedgerEntry{
			AccountKind: kind, SellerID: sellerID, Amount: decimal.NewFromInt(amount), Type: typ, Status: status,
		}))
	}
	add(&seller, model.AccountSeller, 100, model.EntryLocked, model.EntryCredit)
	add(&seller, model.AccountSeller, 50, model.EntryAvailable, model.EntryCredit)
	add(&seller, model.AccountSeller, 5, model.EntryAvailable, model.EntryDebit)
	add(&other, model.AccountSeller, 70, model.EntryAvailable, model.EntryCredit)
	add(nil, model.AccountPlatform, 10, model.EntryAvailable, model.EntryCredit)

	sums, err := repo.SumByStatus(ctx, model.SellerAccount(seller))
	require.NoError(t, err)
	assert.True(t, sums[model.EntryLocked].Equal(decimal.NewFromInt(100)))
	assert.True(t, sums[model.EntryAvailable].Equal(decimal.NewFromInt(45)))
	assert.True(t, sums[model.EntryPaidOut].IsZero())

	platform, err := repo.SumByStatus(ctx, model.PlatformAccount())
	require.NoError(t, err)
	assert.True(t, platform[model.EntryAvailable].Equal(decimal.NewFromInt(10)))

	avail, err := repo.ListAvailableForUpdate(ctx, model.SellerAccount(seller))
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, model.EntryCredit, avail[0].Type)
}

func TestWallet_IdempotencyKeyUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Wallet()
	key := "order:1:order_sale"

	require.NoError(t, repo.Create(ctx, &model.WalletLedgerEntry{AccountKind: model.AccountPlatform, IdempotencyKey: &key}))
	err := repo.Create(ctx, &model.WalletLedgerEntry{AccountKind: model.AccountPlatform, IdempotencyKey: &key})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := repo.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)
}
