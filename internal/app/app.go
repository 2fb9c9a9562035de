package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/utafrali/checkoutcore/internal/config"
	"github.com/utafrali/checkoutcore/internal/event"
	handler "github.com/utafrali/checkoutcore/internal/handler/http"
	"github.com/utafrali/checkoutcore/internal/metrics"
	"github.com/utafrali/checkoutcore/internal/payment"
	"github.com/utafrali/checkoutcore/internal/repository/memory"
	"github.com/utafrali/checkoutcore/internal/repository/postgres"
	rediscart "github.com/utafrali/checkoutcore/internal/repository/redis"
	"github.com/utafrali/checkoutcore/internal/service"
	"github.com/utafrali/checkoutcore/migrations"
	"github.com/utafrali/checkoutcore/pkg/database"
	"github.com/utafrali/checkoutcore/pkg/health"
	"github.com/utafrali/checkoutcore/pkg/httpclient"
	pkgkafka "github.com/utafrali/checkoutcore/pkg/kafka"
	"github.com/utafrali/checkoutcore/pkg/middleware"
	"github.com/utafrali/checkoutcore/pkg/tracing"
)

const serviceName = "checkout"

// App wires together all dependencies and runs the checkout service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	dlqWriter      *kafka.Writer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Components that fail to start are closed before the error is returned.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	stores, err := a.initStores(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}

	gateway, err := a.initPayment(reg)
	if err != nil {
		return nil, err
	}

	calc, err := cfg.Calculator()
	if err != nil {
		return nil, fmt.Errorf("build pricing calculator: %w", err)
	}

	// Kafka is optional; a Producer without a broker publishes nothing.
	var kafkaMetrics *pkgkafka.Metrics
	if cfg.KafkaEnabled {
		kafkaMetrics = pkgkafka.NewMetrics(reg)
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger, kafkaMetrics)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(a.producer, logger)

	checkoutService := service.NewCheckoutService(stores, gateway, eventProducer, logger,
		service.WithDiscount(calc.Discount),
		service.WithMetrics(metrics.New(reg)),
		service.WithTimeouts(service.Timeouts{
			Payment:      cfg.PaymentTimeout,
			Compensation: cfg.CompensationTimeout,
		}),
	)
	catalogService := service.NewCatalogService(stores.Inventory, logger)

	if cfg.KafkaEnabled {
		a.initConsumer(catalogService, kafkaMetrics)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Checkout:       checkoutService,
		Catalog:        catalogService,
		Health:         healthHandler,
		Metrics:        middleware.NewHTTPMetrics(reg, serviceName),
		Gatherer:       reg,
		IdentitySecret: cfg.IdentitySecret,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStores selects the inventory, ledger and cart backends.
func (a *App) initStores(ctx context.Context, reg prometheus.Registerer, h *health.Handler) (service.Stores, error) {
	cfg, logger := a.cfg, a.logger
	stores := service.Stores{Attempts: memory.NewAttemptRepository()}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			URL:             cfg.PostgresDSN(),
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
			MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		}, logger)
		if err != nil {
			return stores, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if err := database.RegisterPoolMetrics(reg, pool, serviceName); err != nil {
			return stores, fmt.Errorf("register pool metrics: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return stores, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		tracer := &database.QueryTracer{Logger: logger}
		if cfg.SlowQueryThresholdMs > 0 {
			tracer.SlowThreshold = time.Duration(cfg.SlowQueryThresholdMs) * time.Millisecond
		}
		stores.Inventory = postgres.NewInventoryStore(pool, tracer)
		stores.Ledger = postgres.NewOrderLedger(pool, tracer)
		h.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	default:
		stores.Inventory = memory.NewInventoryStore()
		stores.Ledger = memory.NewOrderLedger()
		logger.Warn("using in-memory inventory and ledger; data is lost on restart")
	}

	switch cfg.CartBackend {
	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return stores, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

		stores.Carts = rediscart.NewCartStore(client, cfg.CartTTL)
		h.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	default:
		stores.Carts = memory.NewCartStore()
	}

	return stores, nil
}

// initPayment builds the configured payment gateway.
func (a *App) initPayment(reg prometheus.Registerer) (payment.Gateway, error) {
	cfg, logger := a.cfg, a.logger

	switch cfg.PaymentProvider {
	case config.PaymentMock:
		logger.Warn("using mock payment gateway", slog.Int("declined_tokens", len(cfg.PaymentDeclinedTokens)))
		return payment.NewMockGateway(cfg.PaymentDeclinedTokens...), nil
	case config.PaymentHTTP:
		baseClient := httpclient.New(httpclient.Config{
			Timeout:         cfg.PaymentTimeout,
			MaxRetries:      2,
			RetryWaitMin:    200 * time.Millisecond,
			RetryWaitMax:    2 * time.Second,
			MaxConnsPerHost: 100,
		})

		cbCfg := httpclient.CircuitBreakerConfig{
			Name:         "payment-provider",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}
		cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger, httpclient.NewBreakerMetrics(reg)).
			WithFallback(payment.CircuitOpenFallback)
		logger.Info("circuit breaker initialized",
			slog.String("name", cbCfg.Name),
			slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
			slog.Int("timeout_seconds", cfg.CBTimeout),
			slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
		)

		return payment.NewHTTPGateway(cbClient, cfg.PaymentURL, cfg.PaymentTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

// initConsumer subscribes the catalog to product price changes.
func (a *App) initConsumer(catalog *service.CatalogService, m *pkgkafka.Metrics) {
	a.dlqWriter = &kafka.Writer{
		Addr:                   kafka.TCP(a.cfg.KafkaBrokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	consumer := event.NewConsumer(catalog, a.logger)
	h := pkgkafka.IdempotentHandler(
		pkgkafka.NewMemoryIdempotencyStore(24*time.Hour),
		consumer.HandlePriceChanged,
		a.logger,
	)
	a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaGroupID,
		Topic:    event.TopicProductPriceChanged,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, h, a.logger,
		pkgkafka.WithDeadLetterer(pkgkafka.NewDeadLetterer(a.dlqWriter, a.logger)),
		pkgkafka.WithMetrics(m),
	)
}

// Run starts the HTTP server and the price consumer and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(consumerCtx); err != nil {
				errCh <- fmt.Errorf("price consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopConsumer()
		return errors.Join(err, a.Shutdown())
	}

	stopConsumer()
	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer and producer, Redis, PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	// 3. Close the remaining clients.
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources closes every client that was opened, in reverse start order.
func (a *App) closeResources() error {
	var errs []error

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.consumer = nil
	}
	if a.dlqWriter != nil {
		if err := a.dlqWriter.Close(); err != nil {
			a.logger.Error("kafka dlq writer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.dlqWriter = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	return errors.Join(errs...)
}
