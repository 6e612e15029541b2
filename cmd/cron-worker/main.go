package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/atmosfood/storefront-backend/internal/checkout"
	"github.com/atmosfood/storefront-backend/internal/cron"
	"github.com/atmosfood/storefront-backend/internal/orders"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/db"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/metrics"
	"github.com/atmosfood/storefront-backend/pkg/migrate"
	"github.com/atmosfood/storefront-backend/pkg/outbox"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
	"github.com/atmosfood/storefront-backend/pkg/redis"
)

const metricsAddrEnv = "ATMOS_CRON_METRICS_ADDR"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	jobMetrics := metrics.NewCronJobMetrics(promRegistry)
	storefrontMetrics := metrics.NewStorefrontMetrics(promRegistry)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron", "maintenance"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	var orderEvents *outbox.Service
	var relay *pubsub.OrderEventPublisher
	closeEvents := func() error { return nil }
	if cfg.FeatureFlags.OrderEvents {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to create pubsub client", err)
			os.Exit(1)
		}
		orderEvents = outbox.NewService(outboxRepo, dbClient.DB(), logg)
		relay = pubsub.NewOrderEventPublisher(psClient.OrdersPublisher())
		closeEvents = psClient.Close
	}

	ordersClient, err := orders.NewClient(cfg.Orders.BaseURL, cfg.Orders.Timeout, orders.WithMetrics(storefrontMetrics))
	if err != nil {
		logg.Error(ctx, "failed to create orders client", err)
		os.Exit(1)
	}
	orderRepo := orders.NewRepository(dbClient.DB())
	ordersParams := orders.ServiceParams{
		Repo:     orderRepo,
		Upstream: ordersClient,
		Logger:   logg,
	}
	if orderEvents != nil {
		ordersParams.Events = orderEvents
	}
	ordersService, err := orders.NewService(ordersParams)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewPendingExpiryJob(cron.PendingExpiryJobParams{
		Logger:  logg,
		Pending: checkout.NewPendingRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(ctx, "failed to create pending expiry job", err)
		os.Exit(1)
	}
	syncJob, err := cron.NewOrderSyncJob(cron.OrderSyncJobParams{
		Logger: logg,
		Orders: orderRepo,
		Refresher: cron.RefresherFunc(func(ctx context.Context, id uuid.UUID) error {
			_, err := ordersService.Refresh(ctx, id)
			return err
		}),
	})
	if err != nil {
		logg.Error(ctx, "failed to create order sync job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, syncJob)
	if relay != nil {
		relayJob, err := cron.NewOutboxRelayJob(cron.OutboxRelayJobParams{
			Logger:    logg,
			Outbox:    outboxRepo,
			Publisher: relay,
		})
		if err != nil {
			logg.Error(ctx, "failed to create order event relay job", err)
			os.Exit(1)
		}
		if err := registry.Register(relayJob); err != nil {
			logg.Error(ctx, "failed to register order event relay job", err)
			os.Exit(1)
		}
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if addr := os.Getenv(metricsAddrEnv); addr != "" {
		metricsServer = &http.Server{Addr: addr, Handler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	exitCode := 0
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		exitCode = 1
	}

	shutdownCtx := context.WithoutCancel(ctx)
	var closeErr error
	if metricsServer != nil {
		closeErr = multierr.Append(closeErr, metricsServer.Shutdown(shutdownCtx))
	}
	closeErr = multierr.Append(closeErr, closeEvents())
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", closeErr)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logg.Info(shutdownCtx, "cron worker shutting down gracefully")
}
