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

func TestEventRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `events`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event := &model.Event{
		ID:            "6f1c2d9e-0000-4000-8000-000000000001",
		EventType:     model.EventOrderCreated,
		AggregateType: model.AggregateOrder,
		AggregateID:   "42",
		Payload:       model.JSON(`{"order_id":42}`),
		CreatedAt:     time.Now(),
	}
	assert.NoError(t, repo.Create(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_FetchPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	rows := sqlmock.NewRows([]string{"id", "event_type", "aggregate_type", "aggregate_id", "payload", "processed"}).
		AddRow("a", "ORDER_CREATED", "order", "1", []byte(`{"order_id":1}`), false).
		AddRow("b", "ORDER_PAID", "order", "1", []byte(`{"order_id":1}`), false)
	mock.ExpectQuery("SELECT \\* FROM `events` WHERE processed = \\? AND quarantined_at IS NULL ORDER BY created_at ASC, id ASC LIMIT \\?").
		WillReturnRows(rows)

	events, err := repo.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventOrderCreated, events[0].EventType)
	assert.JSONEq(t, `{"order_id":1}`, string(events[1].Payload))
	assert.True(t, events[0].IsPending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ListByAggregate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	rows := sqlmock.NewRows([]string{"id", "event_type", "aggregate_type", "aggregate_id", "processed"}).
		AddRow("0190a1b2-0000-7000-8000-000000000001", "ORDER_CREATED", "order", "1", true).
		AddRow("0190a1b2-0000-7000-8000-000000000002", "ORDER_PAID", "order", "1", false)
	mock.ExpectQuery("SELECT \\* FROM `events` WHERE aggregate_type = \\? AND aggregate_id = \\? ORDER BY created_at ASC, id ASC").
		WithArgs("order", "1").
		WillReturnRows(rows)

	events, err := repo.ListByAggregate(context.Background(), "order", "1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventOrderCreated, events[0].EventType)
	assert.Equal(t, model.EventOrderPaid, events[1].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_LockPending_SkipLocked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `events` WHERE .*FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	event, err := repo.LockPending(context.Background(), "gone")
	assert.Nil(t, event)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_RecordFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `events` SET .*`processing_attempts`=processing_attempts \\+ \\?.*quarantined_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT processing_attempts FROM `events` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"processing_attempts"}).AddRow(3))

	now := time.Now()
	attempts, err := repo.RecordFailure(context.Background(), "a", "handler failed", &now)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_MarkProcessed_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `events` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.MarkProcessed(context.Background(), "gone", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ResetByAggregate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `events` SET .* WHERE aggregate_type = \\? AND aggregate_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.ResetByAggregate(context.Background(), model.AggregateOrder, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_CountPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `events` WHERE processed = \\? AND quarantined_at IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
