// Package relay forwards processed outbox events to downstream consumers
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"marketplace/internal/model"
)

// Forwarder hands a processed event to the outside world
type Forwarder interface {
	Forward(ctx context.Context, event *model.Event) error
	Close() error
}

// Envelope wire format of a forwarded event
type Envelope struct {
	ID            string          `json:"id"`
	Type          model.EventKind `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewEnvelope builds the envelope of event
func NewEnvelope(event *model.Event) Envelope {
	env := Envelope{
		ID:            event.ID,
		Type:          event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       json.RawMessage(event.Payload),
		OccurredAt:    event.CreatedAt,
	}
	if len(event.Metadata) > 0 {
		env.Metadata = json.RawMessage(event.Metadata)
	}
	return env
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder writes events to a kafka topic keyed by aggregate id, so
// every event of one order lands on the same partition in order
type KafkaForwarder struct {
	w       messageWriter
	timeout time.Duration
}

// NewKafkaForwarder creates a synchronous kafka forwarder
func NewKafkaForwarder(brokers []string, topic string, timeout time.Duration) *KafkaForwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaForwarder{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

// Forward writes one message
func (f *KafkaForwarder) Forward(ctx context.Context, event *model.Event) error {
	body, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("relay: encode event %s: %w", event.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateType + ":" + event.AggregateID),
		Value: body,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := f.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("relay: write event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes and closes the writer
func (f *KafkaForwarder) Close() error {
	return f.w.Close()
}

// NopForwarder drops every event
type NopForwarder struct{}

func (NopForwarder) Forward(context.Context, *model.Event) error { return nil }

func (NopForwarder) Close() error { return nil }

// New picks the kafka forwarder when brokers are configured
func New(brokers []string, topic string, timeout time.Duration) Forwarder {
	if len(brokers) == 0 || topic == "" {
		return NopForwarder{}
	}
	return NewKafkaForwarder(brokers, topic, timeout)
}
