package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace/internal/middleware"
	"marketplace/internal/monitor"
	"marketplace/internal/service/inventory"
	"marketplace/internal/service/order"
	"marketplace/internal/service/wallet"
	"marketplace/pkg/utils"
)

// Dependencies everything the HTTP surface needs
type Dependencies struct {
	Orders    order.Service
	Inventory inventory.Ledger
	Wallet    wallet.Service
	Replayer  EventReplayer
	Checks    []HealthCheck

	Metrics     *monitor.Metrics
	Tracer      *monitor.Tracer
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// WriteLimit guards mutating routes, nil disables it
	WriteLimit     gin.HandlerFunc
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter builds the gin engine with every route mounted
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(deps.AllowedOrigins...))
	router.Use(middleware.Observe(deps.Metrics, deps.Tracer))
	if deps.RequestTimeout > 0 {
		router.Use(middleware.Timeout(deps.RequestTimeout))
	}

	health := NewHealthHandler(deps.Checks...)
	router.GET("/health", health.Health)

	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	write := deps.WriteLimit
	if write == nil {
		write = func(c *gin.Context) { c.Next() }
	}

	orders := NewOrderHandler(deps.Orders)
	stock := NewInventoryHandler(deps.Inventory)
	wallets := NewWalletHandler(deps.Wallet)
	events := NewEventHandler(deps.Replayer)

	v1 := router.Group("/api/v1")
	{
		orderGroup := v1.Group("/orders")
		{
			orderGroup.POST("", write, orders.Create)
			orderGroup.GET("/:id", orders.Get)
			orderGroup.GET("/number/:number", orders.GetByNumber)
			orderGroup.GET("/:id/inventory", stock.OrderHistory)
			orderGroup.POST("/:id/state", write, orders.UpdateState)
			orderGroup.POST("/:id/cancel", write, orders.Cancel)
			orderGroup.POST("/:id/pay", write, orders.Pay)
		}

		v1.GET("/buyers/:id/orders", orders.ListByBuyer)

		listingGroup := v1.Group("/listings")
		{
			listingGroup.POST("/:id/adjustments", write, stock.Adjust)
			listingGroup.GET("/:id/transactions", stock.History)
		}

		sellerGroup := v1.Group("/sellers")
		{
			sellerGroup.GET("/:id/wallet", wallets.SellerSummary)
			sellerGroup.GET("/:id/ledger", wallets.SellerLedger)
			sellerGroup.POST("/:id/payouts", write, wallets.RequestPayout)
			sellerGroup.POST("/:id/payouts/approve", write, wallets.ApprovePayout)
		}

		v1.GET("/platform/wallet", wallets.PlatformSummary)
		v1.POST("/events/replay", write, events.Replay)
	}

	router.NoRoute(func(c *gin.Context) {
		utils.ErrorFrom(c, utils.NewError(utils.CodeNotFound, "route not found"))
	})

	return router
}
