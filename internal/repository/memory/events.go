package memory

import (
	"context"
	"time"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type eventRepo struct{ s *Store }

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	defer r.s.lock(ctx)()
	st := r.s.st
	if _, ok := st.events[event.ID]; ok {
		return repository.ErrDuplicate
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.s.now()
	}
	st.events[event.ID] = copyEvent(*event)
	st.eventOrder = append(st.eventOrder, event.ID)
	return nil
}

// ordered walks events in insertion order, which matches created_at order
func (r *eventRepo) ordered(match func(e *model.Event) bool) []*model.Event {
	var out []*model.Event
	for _, id := range r.s.st.eventOrder {
		e := copyEvent(r.s.st.events[id])
		if match(&e) {
			out = append(out, &e)
		}
	}
	return out
}

func (r *eventRepo) FetchPending(ctx context.Context, limit int) ([]*model.Event, error) {
	defer r.s.lock(ctx)()
	out := r.ordered(func(e *model.Event) bool { return e.IsPending() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *eventRepo) LockPending(ctx context.Context, id string) (*model.Event, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.st.events[id]
	if !ok || !e.IsPending() {
		return nil, repository.ErrNotFound
	}
	e = copyEvent(e)
	return &e, nil
}

func (r *eventRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.st.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Processed = true
	e.ProcessedAt = &at
	e.LastError = nil
	r.s.st.events[id] = e
	return nil
}

func (r *eventRepo) RecordFailure(ctx context.Context, id string, msg string, quarantineAt *time.Time) (int, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.st.events[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	e.ProcessingAttempts++
	e.LastError = &msg
	if quarantineAt != nil {
		at := *quarantineAt
		e.QuarantinedAt = &at
	}
	r.s.st.events[id] = e
	return e.ProcessingAttempts, nil
}

func reset(e *model.Event) {
	e.Processed = false
	e.ProcessingAttempts = 0
	e.LastError = nil
	e.ProcessedAt = nil
	e.QuarantinedAt = nil
}

func (r *eventRepo) ResetByAggregate(ctx context.Context, aggregateType, aggregateID string) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id, e := range r.s.st.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			reset(&e)
			r.s.st.events[id] = e
			n++
		}
	}
	return n, nil
}

func (r *eventRepo) ResetFailed(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id, e := range r.s.st.events {
		if !e.Processed && (e.QuarantinedAt != nil || e.ProcessingAttempts > 0) {
			reset(&e)
			r.s.st.events[id] = e
			n++
		}
	}
	return n, nil
}

func (r *eventRepo) ListByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*model.Event, error) {
	defer r.s.lock(ctx)()
	return r.ordered(func(e *model.Event) bool {
		return e.AggregateType == aggregateType && e.AggregateID == aggregateID
	}), nil
}

func (r *eventRepo) CountPending(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.ordered(func(e *model.Event) bool { return e.IsPending() }))), nil
}
