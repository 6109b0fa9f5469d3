package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/fjellmark/njord/internal"
	"github.com/fjellmark/njord/internal/events"
	"github.com/fjellmark/njord/internal/handler"
	"github.com/fjellmark/njord/internal/middleware"
	"github.com/fjellmark/njord/internal/payment"
	"github.com/fjellmark/njord/internal/postgres"
	"github.com/fjellmark/njord/internal/pricing"
	"github.com/fjellmark/njord/internal/router"
	"github.com/fjellmark/njord/internal/routes"
	"github.com/fjellmark/njord/internal/service"
	"github.com/fjellmark/njord/internal/stock"
	"github.com/fjellmark/njord/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	cartStore := postgres.NewCartStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	ledger := stock.NewPostgresLedger(pool)

	// Initialize payment provider
	var provider payment.Provider
	switch cfg.Payment.Provider {
	case "stripe":
		stripeCfg := payment.StripeConfig{
			APIKey:   cfg.Stripe.SecretKey,
			Currency: cfg.Stripe.Currency,
		}
		stripeProvider, err := payment.NewStripeProvider(stripeCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		logger.Info("Stripe payment provider initialized", "test_mode", stripeCfg.IsTestMode())
		provider = stripeProvider
	default:
		provider = payment.NewSimulator(payment.SimulatorConfig{
			SuccessRate: cfg.Payment.SuccessRate,
			ChargeDelay: cfg.Payment.ChargeDelay,
		})
		logger.Info("Payment simulator initialized", "success_rate", cfg.Payment.SuccessRate)
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		logger.Info("NATS event publisher connected", "url", cfg.NATS.URL)
		publisher = natsPublisher
	}

	// Initialize Prometheus metrics
	metrics := middleware.NewMetrics("njord")
	checkoutMetrics := telemetry.NewCheckoutMetrics("njord")

	// Initialize services
	pricer := pricing.NewCalculator()
	cartService := service.NewCartService(cartStore, ledger, logger)
	orderService := service.NewOrderService(orderStore, ledger, publisher, logger)
	paymentService := service.NewPaymentService(orderStore, provider, publisher, logger)
	checkoutService := service.NewCheckoutService(
		cartStore, orderStore, ledger, provider, pricer,
		publisher, checkoutMetrics, logger, cfg.Payment.Timeout,
	)

	// Create router and register routes
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		router.CORS(cfg.CORSOrigins),
		router.Logger(logger),
		middleware.WithRequestLogger(logger),
	)

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		Health:  handler.NewHealthHandler(pool),
		Cart:    handler.NewCartHandler(cartService, logger),
		Order:   handler.NewOrderHandler(checkoutService, orderService, logger),
		Payment: handler.NewPaymentHandler(paymentService, logger),
		Metrics: metrics.Handler(),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr, "env", cfg.Env)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
