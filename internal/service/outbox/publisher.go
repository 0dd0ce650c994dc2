package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

// ErrNoTransaction publish was called outside a unit of work
var ErrNoTransaction = errors.New("outbox: publish requires an active transaction")

// Publisher writes domain events to the outbox table
type Publisher interface {
	// Publish stores an event inside the transaction carried by ctx, so the
	// event commits or rolls back together with the state change it describes
	Publish(ctx context.Context, kind model.EventKind, aggregateType, aggregateID string, payload interface{}, meta model.EventMetadata) (*model.Event, error)
}

type publisher struct {
	events repository.EventRepository
	now    func() time.Time
}

// NewPublisher creates an outbox publisher
func NewPublisher(events repository.EventRepository) Publisher {
	return &publisher{events: events, now: time.Now}
}

func (p *publisher) Publish(ctx context.Context, kind model.EventKind, aggregateType, aggregateID string, payload interface{}, meta model.EventMetadata) (*model.Event, error) {
	if !repository.InTx(ctx) {
		return nil, ErrNoTransaction
	}
	if _, ok := model.ParseEventKind(string(kind)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("outbox: encode payload: %w", err)
	}
	now := p.now()
	if meta.OccurredAt.IsZero() {
		meta.OccurredAt = now
	}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("outbox: encode metadata: %w", err)
	}

	// v7 ids sort in creation order, breaking created_at ties
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("outbox: event id: %w", err)
	}
	event := &model.Event{
		ID:            id.String(),
		EventType:     kind,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       model.JSON(body),
		Metadata:      model.JSON(metaBody),
		CreatedAt:     now,
	}
	if err := p.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("outbox: store event: %w", err)
	}
	return event, nil
}
