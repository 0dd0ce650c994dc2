package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/model"
)

func TestOrderRepository_CreateWithItems(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	uow := NewUnitOfWork(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `order_items`").WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	now := time.Now()
	order := &model.Order{
		ID:             42,
		OrderNumber:    "MK-20260101-42",
		BuyerID:        1,
		SellerID:       2,
		State:          model.OrderStateCreated,
		StateChangedAt: now,
		Currency:       "USD",
		Subtotal:       decimal.NewFromInt(30),
		Total:          decimal.NewFromInt(30),
		Items: []model.OrderItem{
			{ListingID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(10), CreatedAt: now},
			{ListingID: 2, Quantity: 2, UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(20), CreatedAt: now},
		},
	}

	err := uow.RunInTx(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, order)
	})
	require.NoError(t, err)
	for _, it := range order.Items {
		assert.Equal(t, uint64(42), it.OrderID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "state", "seller_id"}).
			AddRow(42, "MK-20260101-42", "PAYMENT_PENDING", 2))
	mock.ExpectQuery("SELECT \\* FROM `order_items` WHERE order_id = \\? ORDER BY listing_id ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "listing_id", "quantity"}).
			AddRow(1, 42, 3, 2).
			AddRow(2, 42, 9, 1))

	order, err := repo.GetForUpdate(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatePaymentPending, order.State)
	require.Len(t, order.Items, 2)
	assert.Equal(t, uint64(3), order.Items[0].ListingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByOrderNumber_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE order_number = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	order, err := repo.GetByOrderNumber(context.Background(), "MK-missing")
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	prev := model.OrderStateCreated
	order := &model.Order{ID: 42, State: model.OrderStatePaymentPending, PreviousState: &prev, StateChangedAt: time.Now(), CreatedAt: time.Now()}
	assert.NoError(t, repo.UpdateState(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListByBuyer(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `orders` WHERE buyer_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE buyer_id = \\? ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "buyer_id"}).AddRow(42, 1))
	mock.ExpectQuery("SELECT \\* FROM `order_items` WHERE `order_items`.`order_id` = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "listing_id"}).AddRow(1, 42, 3))

	orders, total, err := repo.ListByBuyer(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
