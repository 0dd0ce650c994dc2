package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/service/inventory"
	"marketplace/internal/service/order"
	"marketplace/internal/service/wallet"
	"marketplace/pkg/log"
	"marketplace/pkg/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.SetOutput(io.Discard)
	m.Run()
}

type fixture struct {
	router   *gin.Engine
	orders   *MockOrderService
	ledger   *MockLedger
	wallet   *MockWallet
	replayer *MockReplayer
	reg      *prometheus.Registry
}

func newFixture(t *testing.T, checks ...HealthCheck) *fixture {
	t.Helper()
	f := &fixture{
		orders:   new(MockOrderService),
		ledger:   new(MockLedger),
		wallet:   new(MockWallet),
		replayer: new(MockReplayer),
		reg:      prometheus.NewRegistry(),
	}
	f.router = NewRouter(Dependencies{
		Orders:    f.orders,
		Inventory: f.ledger,
		Wallet:    f.wallet,
		Replayer:  f.replayer,
		Checks:    checks,
		Metrics:   monitor.NewMetrics("test", f.reg),
		Tracer:    monitor.NewNoopTracer(),
		Gatherer:  f.reg,
	})
	t.Cleanup(func() {
		f.orders.AssertExpectations(t)
		f.ledger.AssertExpectations(t)
		f.wallet.AssertExpectations(t)
		f.replayer.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleOrder() *model.Order {
	return &model.Order{
		ID:          42,
		OrderNumber: "MK-20261015-42",
		BuyerID:     7,
		SellerID:    3,
		State:       model.OrderStateCreated,
		Currency:    "USD",
		Total:       decimal.RequireFromString("86.8"),
	}
}

func TestOrderHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Create", mock.Anything, mock.MatchedBy(func(req order.CreateOrderRequest) bool {
			return req.BuyerID == 7 && len(req.Items) == 1 && req.Items[0].Quantity == 2 &&
				req.Discount.Equal(decimal.NewFromInt(5))
		})).Return(sampleOrder(), nil)

		w := f.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
			"buyer_id": 7,
			"items":    []map[string]interface{}{{"listing_id": 1, "quantity": 2}},
			"discount": "5",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "MK-20261015-42", data["order_number"])
	})

	t.Run("missing items", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{"buyer_id": 7})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("multiple sellers", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Create", mock.Anything, mock.Anything).Return(nil, order.ErrMultipleSellers)

		w := f.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
			"buyer_id": 7,
			"items":    []map[string]interface{}{{"listing_id": 1, "quantity": 1}, {"listing_id": 2, "quantity": 1}},
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.EqualValues(t, utils.CodeMultiSellerCart, decode(t, w)["code"])
	})

	t.Run("insufficient stock", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Create", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("reserve listing 1: %w", inventory.ErrInsufficientStock))

		w := f.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
			"buyer_id": 7,
			"items":    []map[string]interface{}{{"listing_id": 1, "quantity": 99}},
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.EqualValues(t, utils.CodeStockNotEnough, decode(t, w)["code"])
	})
}

func TestOrderHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Get", mock.Anything, uint64(42)).Return(sampleOrder(), nil)

		w := f.do(http.MethodGet, "/api/v1/orders/42", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, utils.CodeSuccess, decode(t, w)["code"])
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Get", mock.Anything, uint64(9)).Return(nil, order.ErrOrderNotFound)

		w := f.do(http.MethodGet, "/api/v1/orders/9", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.EqualValues(t, utils.CodeNotFound, decode(t, w)["code"])
	})

	t.Run("bad id", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodGet, "/api/v1/orders/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("by number", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("GetByNumber", mock.Anything, "MK-20261015-42").Return(sampleOrder(), nil)

		w := f.do(http.MethodGet, "/api/v1/orders/number/MK-20261015-42", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("internal error is masked", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Get", mock.Anything, uint64(1)).Return(nil, errors.New("connection reset"))

		w := f.do(http.MethodGet, "/api/v1/orders/1", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decode(t, w)["message"])
	})
}

func TestOrderHandler_ListByBuyer(t *testing.T) {
	f := newFixture(t)
	f.orders.On("ListByBuyer", mock.Anything, uint64(7), 2, 10).
		Return([]*model.Order{sampleOrder()}, int64(11), nil)

	w := f.do(http.MethodGet, "/api/v1/buyers/7/orders?page=2&page_size=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 11, data["total"])
	assert.Len(t, data["list"], 1)
}

func TestOrderHandler_UpdateState(t *testing.T) {
	t.Run("moved", func(t *testing.T) {
		f := newFixture(t)
		shipped := sampleOrder()
		shipped.State = model.OrderStateShipped
		f.orders.On("UpdateState", mock.Anything, uint64(42), model.OrderStateShipped, "seller:3").
			Return(shipped, nil)

		w := f.do(http.MethodPost, "/api/v1/orders/42/state", map[string]string{
			"state":    "SHIPPED",
			"actor_id": "seller:3",
		})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown state", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/v1/orders/42/state", map[string]string{
			"state":    "LOST_AT_SEA",
			"actor_id": "seller:3",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("UpdateState", mock.Anything, uint64(42), model.OrderStateDelivered, "seller:3").
			Return(nil, fmt.Errorf("%w: CREATED -> DELIVERED", order.ErrInvalidTransition))

		w := f.do(http.MethodPost, "/api/v1/orders/42/state", map[string]string{
			"state":    "DELIVERED",
			"actor_id": "seller:3",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.EqualValues(t, utils.CodeInvalidTransition, decode(t, w)["code"])
	})
}

func TestOrderHandler_CancelAndPay(t *testing.T) {
	t.Run("cancel refused after payment", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Cancel", mock.Anything, uint64(42), "changed mind", "buyer:7").
			Return(nil, order.ErrCannotCancel)

		w := f.do(http.MethodPost, "/api/v1/orders/42/cancel", map[string]string{
			"reason":   "changed mind",
			"actor_id": "buyer:7",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("pay", func(t *testing.T) {
		f := newFixture(t)
		paid := sampleOrder()
		paid.State = model.OrderStatePaid
		f.orders.On("MarkPaid", mock.Anything, uint64(42), "pay_123", "psp").Return(paid, nil)

		w := f.do(http.MethodPost, "/api/v1/orders/42/pay", map[string]string{
			"payment_reference": "pay_123",
			"actor_id":          "psp",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "PAID", data["state"])
	})

	t.Run("duplicate payment reference", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("MarkPaid", mock.Anything, uint64(43), "pay_123", "psp").
			Return(nil, order.ErrDuplicatePayment)

		w := f.do(http.MethodPost, "/api/v1/orders/43/pay", map[string]string{
			"payment_reference": "pay_123",
			"actor_id":          "psp",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("pay without reference", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/v1/orders/42/pay", map[string]string{"actor_id": "psp"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInventoryHandler(t *testing.T) {
	t.Run("adjust", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.On("Adjust", mock.Anything, uint64(5), inventory.AdjustRequest{
			Type:     model.InventoryStockIn,
			Quantity: 20,
			Reason:   "restock",
			ActorID:  "ops:1",
		}).Return(&model.InventoryTransaction{ID: 1, ListingID: 5, Type: model.InventoryStockIn, Quantity: 20}, nil)

		w := f.do(http.MethodPost, "/api/v1/listings/5/adjustments", map[string]interface{}{
			"type":     "STOCK_IN",
			"quantity": 20,
			"reason":   "restock",
			"actor_id": "ops:1",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("adjust rejects order-keyed type", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.On("Adjust", mock.Anything, uint64(5), mock.Anything).Return(nil, inventory.ErrInvalidAdjustment)

		w := f.do(http.MethodPost, "/api/v1/listings/5/adjustments", map[string]interface{}{
			"type":     "RESERVED",
			"quantity": 1,
			"actor_id": "ops:1",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("history", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.On("History", mock.Anything, uint64(5), 10).
			Return([]*model.InventoryTransaction{{ID: 2}, {ID: 1}}, nil)

		w := f.do(http.MethodGet, "/api/v1/listings/5/transactions?limit=10", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["data"], 2)
	})

	t.Run("order history", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.On("OrderHistory", mock.Anything, uint64(42)).
			Return([]*model.InventoryTransaction{{ID: 3}}, nil)

		w := f.do(http.MethodGet, "/api/v1/orders/42/inventory", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestWalletHandler(t *testing.T) {
	t.Run("seller summary", func(t *testing.T) {
		f := newFixture(t)
		f.wallet.On("GetSummary", mock.Anything, model.SellerAccount(3)).Return(&model.WalletSummary{
			Account:   "seller:3",
			Locked:    decimal.NewFromInt(90),
			Available: decimal.Zero,
			PaidOut:   decimal.Zero,
		}, nil)

		w := f.do(http.MethodGet, "/api/v1/sellers/3/wallet", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "90", data["locked"])
	})

	t.Run("platform summary", func(t *testing.T) {
		f := newFixture(t)
		f.wallet.On("GetSummary", mock.Anything, model.PlatformAccount()).
			Return(&model.WalletSummary{Account: "platform"}, nil)

		w := f.do(http.MethodGet, "/api/v1/platform/wallet", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ledger", func(t *testing.T) {
		f := newFixture(t)
		f.wallet.On("GetLedger", mock.Anything, model.SellerAccount(3), 1, 20).
			Return([]*model.WalletLedgerEntry{{ID: 1}}, int64(1), nil)

		w := f.do(http.MethodGet, "/api/v1/sellers/3/ledger", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("payout beyond balance", func(t *testing.T) {
		f := newFixture(t)
		f.wallet.On("RequestPayout", mock.Anything, uint64(3), mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.NewFromInt(500))
		})).Return(nil, wallet.ErrInsufficientBalance)

		w := f.do(http.MethodPost, "/api/v1/sellers/3/payouts", map[string]string{"amount": "500"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.EqualValues(t, utils.CodeBalanceNotEnough, decode(t, w)["code"])
	})

	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		f.wallet.On("ApprovePayout", mock.Anything, uint64(3)).
			Return(&wallet.ApprovalResult{SellerID: 3, Entries: 2, Amount: decimal.NewFromInt(150)}, nil)

		w := f.do(http.MethodPost, "/api/v1/sellers/3/payouts/approve", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestEventHandler_Replay(t *testing.T) {
	t.Run("failed events", func(t *testing.T) {
		f := newFixture(t)
		f.replayer.On("ReplayFailed", mock.Anything).Return(int64(4), nil)

		w := f.do(http.MethodPost, "/api/v1/events/replay", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]interface{})
		assert.EqualValues(t, 4, data["replayed"])
	})

	t.Run("one aggregate defaults to order", func(t *testing.T) {
		f := newFixture(t)
		f.replayer.On("ReplayAggregate", mock.Anything, model.AggregateOrder, "42").Return(int64(3), nil)

		w := f.do(http.MethodPost, "/api/v1/events/replay", map[string]string{"aggregate_id": "42"})

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newFixture(t, HealthCheck{Name: "database", Check: func(context.Context) error { return nil }})

		w := f.do(http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decode(t, w)["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		f := newFixture(t,
			HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }},
		)

		w := f.do(http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		deps := decode(t, w)["dependencies"].(map[string]interface{})
		assert.Equal(t, "ok", deps["database"])
		assert.Equal(t, "dial tcp: refused", deps["redis"])
	})

	t.Run("metrics exposes request counter", func(t *testing.T) {
		f := newFixture(t)
		f.do(http.MethodGet, "/health", nil)

		w := f.do(http.MethodGet, "/metrics", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "test_http_requests_total")
	})

	t.Run("unknown route", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodGet, "/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWriteLimitAppliesToMutations(t *testing.T) {
	f := &fixture{orders: new(MockOrderService)}
	f.router = NewRouter(Dependencies{
		Orders: f.orders,
		WriteLimit: func(c *gin.Context) {
			utils.Error(c, utils.CodeRateLimit, "rate limit exceeded")
		},
	})
	f.orders.On("Get", mock.Anything, uint64(42)).Return(sampleOrder(), nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/orders/42", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/api/v1/orders/42/cancel", map[string]string{"actor_id": "x"}).Code)
	f.orders.AssertExpectations(t)
}

func TestToAppError_InventoryErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: listing 1 order 2", inventory.ErrReservationNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: listing 1 order 2 reserved 3, got 5", inventory.ErrReservationMismatch), http.StatusConflict},
		{fmt.Errorf("%w: listing 1 order 2", inventory.ErrReservationFinalized), http.StatusConflict},
		{fmt.Errorf("%w: listing 1", inventory.ErrInsufficientStock), http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		appErr := toAppError(tt.err)
		assert.Equal(t, tt.status, utils.HTTPStatus(appErr), tt.err.Error())
	}
}
