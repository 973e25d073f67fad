package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/api/routes"
	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/internal/catalog"
	"github.com/angelmondragon/vowmarket-backend/internal/checkout"
	"github.com/angelmondragon/vowmarket-backend/internal/cron"
	"github.com/angelmondragon/vowmarket-backend/internal/ledger"
	"github.com/angelmondragon/vowmarket-backend/internal/orders"
	"github.com/angelmondragon/vowmarket-backend/internal/payments"
	"github.com/angelmondragon/vowmarket-backend/internal/refunds"
	stripewebhook "github.com/angelmondragon/vowmarket-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/vowmarket-backend/pkg/config"
	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/metrics"
	"github.com/angelmondragon/vowmarket-backend/pkg/migrate"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	"github.com/angelmondragon/vowmarket-backend/pkg/redis"
	"github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

const (
	webhookGuardScope = "stripe-webhook"
	shutdownTimeout   = 15 * time.Second
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
	cfg.Service.Kind = "api"

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
	gateway := stripe.NewGateway(stripeClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	settlementMetrics := metrics.NewSettlementMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	conn := dbClient.DB()
	currency := cfg.Settlement.NormalizedCurrency()
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)
	ordersRepo := orders.NewRepository(conn)
	paymentsRepo := payments.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	accountsRepo := accounts.NewRepository(conn)

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	aggregator, err := orders.NewAggregator(orders.AggregatorParams{
		Repo:     ordersRepo,
		Catalog:  func(tx *gorm.DB) orders.CatalogReader { return catalogRepo.WithTx(tx) },
		Sellers:  func(tx *gorm.DB) orders.SellerReader { return accountsRepo.WithTx(tx) },
		Currency: currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order aggregator", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TransactionRunner: dbClient,
		Aggregator:        aggregator,
		Carts:             catalogRepo,
		Gateway:           gateway,
		Stripe:            cfg.Stripe,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	accountService, err := accounts.NewService(accounts.ServiceParams{
		Repo:              accountsRepo,
		Gateway:           gateway,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Stripe:            cfg.Stripe,
		Currency:          currency,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create account service", err)
		os.Exit(1)
	}

	refundService, err := refunds.NewService(refunds.ServiceParams{
		Repo:              refunds.NewRepository(conn),
		Orders:            ordersRepo,
		Payments:          paymentsRepo,
		Accounts:          accountsRepo,
		Ledger:            ledgerService,
		Gateway:           gateway,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Metrics:           settlementMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		TransactionRunner: dbClient,
		Payments:          paymentsRepo,
		Orders:            ordersRepo,
		Catalog:           catalogRepo,
		Accounts:          accountsRepo,
		Ledger:            ledgerService,
		AccountSync:       accountService,
		Outbox:            outboxService,
		Metrics:           settlementMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, webhookGuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	captureJob, err := cron.NewDeferredCaptureJob(cron.DeferredCaptureJobParams{
		Logger:     logg,
		DB:         dbClient,
		Payments:   paymentsRepo,
		Gateway:    gateway,
		Outbox:     outboxService,
		Metrics:    settlementMetrics,
		HoldWindow: cfg.Settlement.HoldWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deferred capture job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Outbox:      outboxRepo,
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	cronLock, err := cron.NewRedisLock(redisClient, cron.LockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	jobs, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(captureJob, retentionJob),
		Lock:     cronLock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job runner", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   id,
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:                   dbClient,
			Redis:                redisClient,
			Idempotency:          redisClient,
			Checkout:             checkoutService,
			Refunds:              refundService,
			Accounts:             accountService,
			Ledger:               ledgerService,
			Jobs:                 jobs,
			StripeClient:         stripeClient,
			StripeWebhookService: webhookService,
			StripeWebhookGuard:   webhookGuard,
			Metrics:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
