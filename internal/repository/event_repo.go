package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/model"
)

// EventRepository outbox table access
type EventRepository interface {
	// Create inserts an event. Must run inside the transaction of the state
	// change it describes.
	Create(ctx context.Context, event *model.Event) error

	// FetchPending returns unprocessed, unquarantined events, oldest first
	FetchPending(ctx context.Context, limit int) ([]*model.Event, error)

	// LockPending locks one event row for processing. Returns ErrNotFound when
	// the row is gone, already processed, quarantined or locked by another worker.
	LockPending(ctx context.Context, id string) (*model.Event, error)

	// MarkProcessed flags an event as handled
	MarkProcessed(ctx context.Context, id string, at time.Time) error

	// RecordFailure increments the attempt counter, stores the error and
	// optionally quarantines the event. Returns the new attempt count.
	RecordFailure(ctx context.Context, id string, msg string, quarantineAt *time.Time) (int, error)

	// ResetByAggregate makes every event of one aggregate pending again
	ResetByAggregate(ctx context.Context, aggregateType, aggregateID string) (int64, error)

	// ResetFailed makes every quarantined or failed unprocessed event pending again
	ResetFailed(ctx context.Context) (int64, error)

	// ListByAggregate lists the events of one aggregate, oldest first
	ListByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*model.Event, error)

	// CountPending counts events the processor will still pick up
	CountPending(ctx context.Context) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates an event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	return translate(conn(ctx, r.db).Create(event).Error)
}

func (r *eventRepository) FetchPending(ctx context.Context, limit int) ([]*model.Event, error) {
	var events []*model.Event
	err := conn(ctx, r.db).
		Where("processed = ? AND quarantined_at IS NULL", false).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	return events, translate(err)
}

func (r *eventRepository) LockPending(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("id = ? AND processed = ? AND quarantined_at IS NULL", id, false).
		First(&event).Error
	if err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (r *eventRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	result := conn(ctx, r.db).
		Model(&model.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": at,
			"last_error":   nil,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepository) RecordFailure(ctx context.Context, id string, msg string, quarantineAt *time.Time) (int, error) {
	updates := map[string]interface{}{
		"processing_attempts": gorm.Expr("processing_attempts + ?", 1),
		"last_error":          msg,
	}
	if quarantineAt != nil {
		updates["quarantined_at"] = *quarantineAt
	}

	db := conn(ctx, r.db)
	result := db.Model(&model.Event{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var attempts int
	err := db.Model(&model.Event{}).
		Select("processing_attempts").
		Where("id = ?", id).
		Scan(&attempts).Error
	return attempts, translate(err)
}

var resetColumns = map[string]interface{}{
	"processed":           false,
	"processing_attempts": 0,
	"last_error":          nil,
	"processed_at":        nil,
	"quarantined_at":      nil,
}

func (r *eventRepository) ResetByAggregate(ctx context.Context, aggregateType, aggregateID string) (int64, error) {
	result := conn(ctx, r.db).
		Model(&model.Event{}).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Updates(resetColumns)
	return result.RowsAffected, translate(result.Error)
}

func (r *eventRepository) ResetFailed(ctx context.Context) (int64, error) {
	result := conn(ctx, r.db).
		Model(&model.Event{}).
		Where("processed = ? AND (quarantined_at IS NOT NULL OR processing_attempts > ?)", false, 0).
		Updates(resetColumns)
	return result.RowsAffected, translate(result.Error)
}

func (r *eventRepository) ListByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*model.Event, error) {
	var events []*model.Event
	err := conn(ctx, r.db).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, translate(err)
}

func (r *eventRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&model.Event{}).
		Where("processed = ? AND quarantined_at IS NULL", false).
		Count(&count).Error
	return count, translate(err)
}
