package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazelbrook/storefront-backend/api/routes"
	"github.com/hazelbrook/storefront-backend/internal/cart"
	"github.com/hazelbrook/storefront-backend/internal/catalog"
	"github.com/hazelbrook/storefront-backend/internal/checkout"
	"github.com/hazelbrook/storefront-backend/internal/paymentsync"
	"github.com/hazelbrook/storefront-backend/internal/shipping"
	"github.com/hazelbrook/storefront-backend/pkg/config"
	"github.com/hazelbrook/storefront-backend/pkg/db"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
	"github.com/hazelbrook/storefront-backend/pkg/metrics"
	"github.com/hazelbrook/storefront-backend/pkg/migrate"
	"github.com/hazelbrook/storefront-backend/pkg/redis"
	"github.com/hazelbrook/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	syncer, err := paymentsync.NewSynchronizer(
		paymentsync.NewStripeClient(stripeClient),
		redisClient,
		paymentsync.Config{
			Debounce:   cfg.Checkout.Debounce(),
			SessionTTL: cfg.Checkout.SessionTTL,
			Currency:   cfg.Checkout.Currency,
		},
		checkoutMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment synchronizer", err)
		os.Exit(1)
	}

	cartStore, err := cart.NewRedisStore(redisClient, cfg.Checkout.SessionTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cartStore, syncer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	shippingService, err := shipping.NewService(
		shipping.NewStripeClient(stripeClient),
		redisClient,
		cfg.Shipping.RateLimit,
		cfg.Checkout.SessionTTL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		checkout.NewStripeClient(stripeClient),
		syncer,
		cartService,
		shippingService,
		redisClient,
		checkout.Config{
			ReturnURL:       cfg.Checkout.ReturnURL,
			SuccessGuardTTL: cfg.Checkout.SuccessGuardTTL,
		},
		checkoutMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			catalogService,
			cartService,
			shippingService,
			checkoutService,
			syncer,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
