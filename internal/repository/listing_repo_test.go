package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/model"
)

func TestListingRepository_GetForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "seller_id", "title", "price", "stock_quantity", "reserved_quantity", "status"}).
		AddRow(7, 3, "Lamp", "19.9900", 5, 1, "ACTIVE")
	mock.ExpectQuery("SELECT \\* FROM `listings` WHERE id = \\?.*FOR UPDATE").
		WillReturnRows(rows)

	listing, err := repo.GetForUpdate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), listing.ID)
	assert.Equal(t, 4, listing.Available())
	assert.Equal(t, "19.99", listing.Price.String())
	assert.True(t, listing.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `listings` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	listing, err := repo.GetByID(context.Background(), 99)
	assert.Nil(t, listing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_GetManyForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "seller_id", "stock_quantity"}).
		AddRow(2, 1, 4).
		AddRow(5, 1, 8)
	mock.ExpectQuery("SELECT \\* FROM `listings` WHERE id IN \\(\\?,\\?\\) ORDER BY id ASC FOR UPDATE").
		WithArgs(2, 5).
		WillReturnRows(rows)

	listings, err := repo.GetManyForUpdate(context.Background(), []uint64{5, 2})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, uint64(2), listings[0].ID)
	assert.Equal(t, uint64(5), listings[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_GetManyForUpdate_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	listings, err := repo.GetManyForUpdate(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, listings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_UpdateQuantities(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewListingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `listings` SET").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.UpdateQuantities(context.Background(), 7, 5, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewListingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `listings` SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, repo.UpdateQuantities(context.Background(), 7, 5, 2), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListingRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `listings`").WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	listing := &model.Listing{SellerID: 1, Title: "Chair", StockQuantity: 3, Status: model.ListingStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), listing))
	assert.Equal(t, uint64(11), listing.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
