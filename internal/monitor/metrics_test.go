package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("marketplace", reg)

	m.OrderCreated()
	m.OrderCreated()
	m.OrderTransition("CREATED", "PAYMENT_PENDING")
	m.InventoryOp("RESERVED", "applied")
	m.EventProcessed("ORDER_PAID")
	m.EventQuarantined("ORDER_PAID")
	m.FundsReleased(3)
	m.SetOutboxPending(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderTransitions.WithLabelValues("CREATED", "PAYMENT_PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inventoryOps.WithLabelValues("RESERVED", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxProcessed.WithLabelValues("ORDER_PAID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxQuarantined.WithLabelValues("ORDER_PAID")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fundsReleased))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.outboxPending))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.EventFailed("ORDER_CREATED")
		m.ObserveOutboxBatch(time.Second)
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("a", prometheus.NewRegistry())
		NewMetrics("a", prometheus.NewRegistry())
	})
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("marketplace", reg)
	m.OrderCreated()

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "marketplace_orders_created_total 1"))
}

func TestTracer_Disabled(t *testing.T) {
	tr := NewNoopTracer()
	ctx, span := tr.StartEventSpan(context.Background(), "id", "ORDER_PAID", "42")
	defer span.End()

	assert.Equal(t, "", tr.TraceID(ctx))
	assert.NoError(t, tr.Shutdown(ctx))
}
