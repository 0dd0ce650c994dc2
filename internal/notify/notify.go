package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"marketplace/pkg/breaker"
	"marketplace/pkg/log"
)

// Notification message for one user
type Notification struct {
	UserID  uint64    `json:"user_id"`
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Kinds
const (
	KindFundsAvailable = "funds_available"
	KindPayout         = "payout"
)

// Notifier delivers notifications. Callers treat delivery as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel redis pub/sub channel of a user
func Channel(userID uint64) string {
	return fmt.Sprintf("notifications:%d", userID)
}

// RedisNotifier publishes notifications on a per-user redis channel,
// guarded by a circuit breaker so a dead redis does not slow callers down
type RedisNotifier struct {
	client  redis.UniversalClient
	breaker *breaker.CircuitBreaker
}

// NewRedisNotifier creates a redis notifier
func NewRedisNotifier(client redis.UniversalClient, cb *breaker.CircuitBreaker) *RedisNotifier {
	return &RedisNotifier{client: client, breaker: cb}
}

// Notify publishes n as JSON
func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	publish := func(ctx context.Context) error {
		return r.client.Publish(ctx, Channel(n.UserID), body).Err()
	}
	if r.breaker == nil {
		return publish(ctx)
	}
	return r.breaker.Execute(ctx, publish)
}

// LogNotifier writes notifications to the log
type LogNotifier struct{}

// Notify logs n
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.WithFields(logrus.Fields{
		"user_id": n.UserID,
		"kind":    n.Kind,
		"title":   n.Title,
	}).Info(n.Message)
	return nil
}

// Fallback tries primary and falls back to secondary when it fails
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
}

// Notify implements Notifier
func (f Fallback) Notify(ctx context.Context, n Notification) error {
	err := f.Primary.Notify(ctx, n)
	if err == nil {
		return nil
	}
	log.WithError(err).WithField("user_id", n.UserID).Warn("Primary notifier failed, falling back")
	return f.Secondary.Notify(ctx, n)
}
