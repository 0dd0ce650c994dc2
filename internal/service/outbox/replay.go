package outbox

import (
	"context"

	"github.com/sirupsen/logrus"

	"marketplace/internal/repository"
	"marketplace/pkg/log"
)

// ReplayService makes processed or failed events pending again. Handlers are
// idempotent, so replaying an applied event changes nothing.
type ReplayService struct {
	uow    repository.UnitOfWork
	events repository.EventRepository
}

// NewReplayService creates a replay service
func NewReplayService(uow repository.UnitOfWork, events repository.EventRepository) *ReplayService {
	return &ReplayService{uow: uow, events: events}
}

// ReplayAggregate resets every event of one aggregate
func (r *ReplayService) ReplayAggregate(ctx context.Context, aggregateType, aggregateID string) (int64, error) {
	var n int64
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.events.ResetByAggregate(ctx, aggregateType, aggregateID)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{
		"aggregate_type": aggregateType,
		"aggregate_id":   aggregateID,
		"events":         n,
	}).Info("Aggregate events scheduled for replay")
	return n, nil
}

// ReplayFailed resets every quarantined or failed event
func (r *ReplayService) ReplayFailed(ctx context.Context) (int64, error) {
	var n int64
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.events.ResetFailed(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.WithField("events", n).Info("Failed events scheduled for replay")
	return n, nil
}
