package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"marketplace/internal/config"
	"marketplace/internal/consumer"
	"marketplace/internal/database"
	"marketplace/internal/handler"
	"marketplace/internal/middleware"
	"marketplace/internal/monitor"
	"marketplace/internal/notify"
	"marketplace/internal/redis"
	"marketplace/internal/relay"
	"marketplace/internal/service/inventory"
	"marketplace/internal/service/order"
	"marketplace/internal/service/outbox"
	"marketplace/internal/service/wallet"
	"marketplace/pkg/breaker"
	"marketplace/pkg/lock"
	"marketplace/pkg/log"
)

func main() {
	// .env is optional, real deployments inject the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("MARKETPLACE_CONFIG"))
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.WithError(err).Fatal("Failed to initialize logger")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// observability
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *monitor.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitor.NewMetrics(cfg.Metrics.Namespace, reg)
	}

	tracer, err := monitor.NewTracer(&monitor.TracerConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    config.Env(),
		JaegerEndpoint: cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracer")
	}

	// storage
	store, err := database.NewStore(cfg.Database)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"driver": cfg.Database.Driver,
			"error":  err.Error(),
		}).Fatal("Failed to initialize database")
	}
	defer store.Close()

	checks := []handler.HealthCheck{{Name: "database", Check: store.Health}}

	// redis is optional: it carries notifications, the outbox leader lock and
	// the shared rate limiter
	var redisClient *goredis.Client
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize redis")
		}
		defer redisClient.Close()

		cb := breaker.NewCircuitBreaker("notify", breaker.Config{
			MaxRequests: cfg.CircuitBreak.MaxRequests,
			Interval:    cfg.CircuitBreak.Interval,
			Timeout:     cfg.CircuitBreak.Timeout,
			ReadyToTrip: breaker.ConsecutiveFailures(cfg.CircuitBreak.ConsecutiveFailures),
			OnStateChange: func(name string, from, to breaker.State) {
				log.WithFields(map[string]interface{}{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		})
		notifier = notify.Fallback{
			Primary:   notify.NewRedisNotifier(redisClient, cb),
			Secondary: notify.LogNotifier{},
		}
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redis.Health(ctx, redisClient) },
		})
	}

	forwarder := relay.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
	defer forwarder.Close()

	// services
	numbers, err := order.NewNumberGenerator(cfg.Order.NodeID, cfg.Order.NumberPrefix)
	if err != nil {
		log.WithError(err).Fatal("Failed to create order number generator")
	}

	ledger := inventory.NewLedger(store.UnitOfWork, store.Listings, store.InventoryTransactions, metrics)
	wallets := wallet.NewService(store.UnitOfWork, store.Wallet, notifier, metrics, cfg.Order.CommissionRate)
	publisher := outbox.NewPublisher(store.Events)
	orders := order.NewService(store.UnitOfWork, store.Orders, store.Listings, ledger, publisher, numbers, metrics, order.Config{
		Currency: cfg.Order.Currency,
		Pricing: order.Pricing{
			TaxRate:     cfg.Order.TaxRate,
			ShippingFee: cfg.Order.ShippingFee,
		},
	})

	opts := []outbox.ProcessorOption{
		outbox.WithForwarder(forwarder),
		outbox.WithMetrics(metrics),
		outbox.WithTracer(tracer),
	}
	if cfg.Outbox.LeaderLock && redisClient != nil {
		opts = append(opts, outbox.WithLeaderLock(
			lock.NewRedisLock(redisClient, "marketplace:outbox:leader", uuid.NewString(), cfg.Outbox.LeaderTTL),
		))
	}
	processor := outbox.NewProcessor(store.UnitOfWork, store.Events, outbox.NewLedgerHandlers(ledger, wallets), outbox.ProcessorConfig{
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
	}, opts...)
	replay := outbox.NewReplayService(store.UnitOfWork, store.Events)
	releaser := wallet.NewCronService(store.UnitOfWork, store.Wallet, notifier, metrics, cfg.Wallet.HoldWindow, cfg.Wallet.ReleaseBatch)

	// background workers
	workers := consumer.Group{
		consumer.NewOutboxConsumer(processor, consumer.SupervisorConfig{
			Interval:     cfg.Outbox.PollInterval,
			IdleInterval: cfg.Outbox.IdleInterval,
			MaxBackoff:   cfg.Outbox.MaxBackoff,
		}),
		consumer.NewWalletReleaseConsumer(releaser, consumer.SupervisorConfig{
			Interval:   cfg.Wallet.ReleaseInterval,
			MaxBackoff: cfg.Wallet.MaxBackoff,
		}),
	}
	workers.Start(ctx)

	// http
	var writeLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			writeLimit = middleware.DistributedRateLimit(
				redis.NewSlidingWindowLimiter(redisClient, "marketplace:ratelimit", time.Second, cfg.RateLimit.Burst),
			)
		} else {
			writeLimit = middleware.IPRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	router := handler.NewRouter(handler.Dependencies{
		Orders:         orders,
		Inventory:      ledger,
		Wallet:         wallets,
		Replayer:       replay,
		Checks:         checks,
		Metrics:        metrics,
		Tracer:         tracer,
		Gatherer:       gathererIf(cfg.Metrics.Enabled, reg),
		MetricsPath:    cfg.Metrics.Path,
		WriteLimit:     writeLimit,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	if err := config.WatchConfig(os.Getenv("MARKETPLACE_CONFIG"), func(next *config.Config) {
		level, err := logrus.ParseLevel(next.Log.Level)
		if err != nil {
			return
		}
		log.GetLogger().SetLevel(level)
		log.WithField("level", level.String()).Info("Log level reloaded")
	}, func(err error) {
		log.WithError(err).Warn("Ignoring invalid config change")
	}); err != nil {
		log.WithError(err).Warn("Config watch disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":     server.Addr,
			"mode":     cfg.Server.Mode,
			"database": cfg.Database.Driver,
			"redis":    cfg.Redis.Enabled,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("HTTP server failed")
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	workers.Stop()
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Tracer shutdown failed")
	}

	log.WithField("workers", len(workers)).Info("Server exited")
}

func gathererIf(enabled bool, g prometheus.Gatherer) prometheus.Gatherer {
	if !enabled {
		return nil
	}
	return g
}
