package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/relay"
	"marketplace/internal/repository"
	"marketplace/pkg/lock"
	"marketplace/pkg/log"
)

// MaxRetries failed attempts after which an event is quarantined
const MaxRetries = 3

// ProcessorConfig processor tuning
type ProcessorConfig struct {
	BatchSize  int
	MaxRetries int
}

// Processor dispatches pending outbox events to their handlers
type Processor struct {
	uow       repository.UnitOfWork
	events    repository.EventRepository
	handlers  Handlers
	forwarder relay.Forwarder
	leader    *lock.RedisLock
	metrics   *monitor.Metrics
	tracer    *monitor.Tracer
	cfg       ProcessorConfig
	now       func() time.Time
}

// ProcessorOption optional processor collaborator
type ProcessorOption func(*Processor)

// WithForwarder relays every processed event downstream
func WithForwarder(f relay.Forwarder) ProcessorOption {
	return func(p *Processor) { p.forwarder = f }
}

// WithLeaderLock processes a batch only while holding l, so a single replica
// polls at a time
func WithLeaderLock(l *lock.RedisLock) ProcessorOption {
	return func(p *Processor) { p.leader = l }
}

// WithMetrics records processing metrics
func WithMetrics(m *monitor.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithTracer opens one span per event
func WithTracer(t *monitor.Tracer) ProcessorOption {
	return func(p *Processor) { p.tracer = t }
}

// NewProcessor creates an outbox processor
func NewProcessor(uow repository.UnitOfWork, events repository.EventRepository, handlers Handlers, cfg ProcessorConfig, opts ...ProcessorOption) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}
	p := &Processor{
		uow:       uow,
		events:    events,
		handlers:  handlers,
		forwarder: relay.NopForwarder{},
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one batch of the oldest pending events and returns how
// many were processed. Handler failures are recorded on the event, not
// returned; an error means the batch could not be read at all.
func (p *Processor) Process(ctx context.Context) (int, error) {
	if p.leader != nil {
		if err := p.leader.Lock(ctx); err != nil {
			if errors.Is(err, lock.ErrLockNotAcquired) {
				return 0, nil
			}
			return 0, fmt.Errorf("outbox: leader lock: %w", err)
		}
		defer func() {
			if err := p.leader.Unlock(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, lock.ErrLockNotHeld) {
				log.WithError(err).Warn("Failed to release outbox leader lock")
			}
		}()
	}

	start := p.now()
	defer func() { p.metrics.ObserveOutboxBatch(p.now().Sub(start)) }()

	batch, err := p.events.FetchPending(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("outbox: fetch pending: %w", err)
	}

	processed := 0
	for _, event := range batch {
		if ctx.Err() != nil {
			break
		}
		ok, err := p.processOne(ctx, event)
		if err != nil {
			p.recordFailure(ctx, event, err)
			continue
		}
		if ok {
			processed++
		}
	}

	if pending, err := p.events.CountPending(ctx); err == nil {
		p.metrics.SetOutboxPending(pending)
	}
	return processed, nil
}

// processOne dispatches one event in its own unit of work. Reports false
// when another worker already took or finished the event.
func (p *Processor) processOne(ctx context.Context, event *model.Event) (bool, error) {
	ctx, span := p.tracer.StartEventSpan(ctx, event.ID, string(event.EventType), event.AggregateID)
	defer span.End()

	var locked *model.Event
	err := p.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		locked, err = p.events.LockPending(ctx, event.ID)
		if errors.Is(err, repository.ErrNotFound) {
			locked = nil
			return nil
		}
		if err != nil {
			return err
		}
		if err := Dispatch(ctx, p.handlers, locked); err != nil {
			return err
		}
		return p.events.MarkProcessed(ctx, locked.ID, p.now())
	})
	if err != nil {
		p.tracer.RecordError(span, err)
		return false, err
	}
	if locked == nil {
		return false, nil
	}

	p.metrics.EventProcessed(string(locked.EventType))
	log.WithFields(logrus.Fields{
		"event_id":     locked.ID,
		"event_type":   locked.EventType,
		"aggregate_id": locked.AggregateID,
	}).Debug("Event processed")

	if err := p.forwarder.Forward(ctx, locked); err != nil {
		log.WithError(err).WithField("event_id", locked.ID).Warn("Failed to forward event")
	}
	return true, nil
}

// recordFailure stores the attempt in a fresh unit of work, the dispatch one
// having rolled back, and quarantines events that cannot succeed
func (p *Processor) recordFailure(ctx context.Context, event *model.Event, cause error) {
	fields := logrus.Fields{
		"event_id":     event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}

	// the batch snapshot may be stale, so the attempt count is read from the
	// locked row before deciding on quarantine
	var quarantined bool
	err := p.uow.RunInTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		current, err := p.events.LockPending(ctx, event.ID)
		if err != nil {
			return err
		}
		var quarantineAt *time.Time
		if Permanent(cause) || current.ProcessingAttempts+1 >= p.cfg.MaxRetries {
			now := p.now()
			quarantineAt = &now
		}
		attempts, err := p.events.RecordFailure(ctx, event.ID, cause.Error(), quarantineAt)
		fields["attempts"] = attempts
		quarantined = quarantineAt != nil
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		log.WithFields(fields).WithError(cause).Debug("Event settled by another worker, failure not recorded")
		return
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to record event failure")
		return
	}

	p.metrics.EventFailed(string(event.EventType))
	if quarantined {
		p.metrics.EventQuarantined(string(event.EventType))
		log.WithFields(fields).WithError(cause).Error("Event quarantined")
		return
	}
	log.WithFields(fields).WithError(cause).Warn("Event processing failed, will retry")
}
