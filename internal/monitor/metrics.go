package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics business and transport metrics. A nil *Metrics is valid and
// records nothing, so services can run without a registry.
type Metrics struct {
	ordersCreated      prometheus.Counter
	orderTransitions   *prometheus.CounterVec
	inventoryOps       *prometheus.CounterVec
	outboxProcessed    *prometheus.CounterVec
	outboxFailed       *prometheus.CounterVec
	outboxQuarantined  *prometheus.CounterVec
	outboxBatch        prometheus.Histogram
	outboxPending      prometheus.Gauge
	walletCredits      *prometheus.CounterVec
	payouts            *prometheus.CounterVec
	fundsReleased      prometheus.Counter
	httpRequestTotal   *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ordersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of orders created",
		}),
		orderTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order state transitions by source and target state",
		}, []string{"from", "to"}),
		inventoryOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_operations_total",
			Help:      "Inventory ledger operations by type and result",
		}, []string{"type", "result"}),
		outboxProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Outbox events dispatched successfully",
		}, []string{"kind"}),
		outboxFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Outbox handler failures",
		}, []string{"kind"}),
		outboxQuarantined: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_quarantined_total",
			Help:      "Outbox events the processor gave up on",
		}, []string{"kind"}),
		outboxBatch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_batch_duration_seconds",
			Help:      "Duration of one outbox processing cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		outboxPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_events_pending",
			Help:      "Events waiting to be processed",
		}),
		walletCredits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_credits_total",
			Help:      "Wallet credits written by reason",
		}, []string{"reason"}),
		payouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_payouts_total",
			Help:      "Payout operations by kind",
		}, []string{"kind"}),
		fundsReleased: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_funds_released_total",
			Help:      "Locked ledger entries moved to available",
		}),
		httpRequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		httpRequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Handler exposes the default gatherer
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor exposes a custom gatherer
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

// InventoryOp result is "applied", "replayed" or "rejected"
func (m *Metrics) InventoryOp(typ, result string) {
	if m == nil {
		return
	}
	m.inventoryOps.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) EventProcessed(kind string) {
	if m == nil {
		return
	}
	m.outboxProcessed.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventFailed(kind string) {
	if m == nil {
		return
	}
	m.outboxFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventQuarantined(kind string) {
	if m == nil {
		return
	}
	m.outboxQuarantined.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveOutboxBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.outboxBatch.Observe(d.Seconds())
}

func (m *Metrics) SetOutboxPending(n int64) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

func (m *Metrics) WalletCredit(reason string) {
	if m == nil {
		return
	}
	m.walletCredits.WithLabelValues(reason).Inc()
}

func (m *Metrics) Payout(kind string) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(kind).Inc()
}

func (m *Metrics) FundsReleased(n int) {
	if m == nil {
		return
	}
	m.fundsReleased.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.httpRequestLatency.WithLabelValues(method, path).Observe(d.Seconds())
}
