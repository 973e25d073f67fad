package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vowmarket-backend/internal/cron"
	"github.com/angelmondragon/vowmarket-backend/internal/payments"
	"github.com/angelmondragon/vowmarket-backend/pkg/config"
	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/metrics"
	"github.com/angelmondragon/vowmarket-backend/pkg/migrate"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	"github.com/angelmondragon/vowmarket-backend/pkg/redis"
	"github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	job := flag.String("job", "", "run only the named job and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	if err := run(ctx, cfg, logg, *once, *job); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, only string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fmt.Errorf("bootstrap stripe: %w", err)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	captureJob, err := cron.NewDeferredCaptureJob(cron.DeferredCaptureJobParams{
		Logger:     logg,
		DB:         dbClient,
		Payments:   payments.NewRepository(dbClient.DB()),
		Gateway:    stripe.NewGateway(stripeClient),
		Outbox:     outbox.NewService(outboxRepo, logg),
		Metrics:    metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		HoldWindow: cfg.Settlement.HoldWindow,
	})
	if err != nil {
		return fmt.Errorf("deferred capture job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Outbox:      outboxRepo,
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, cron.LockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(captureJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithField(ctx, "stripe_env", stripeClient.Environment())
	switch {
	case only != "":
		logg.Info(logg.WithField(ctx, "job", only), "running single job")
		return service.RunJob(ctx, only)
	case once:
		logg.Info(ctx, "running cron jobs once")
		return service.RunOnce(ctx)
	}
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+what, err)
	}
}
