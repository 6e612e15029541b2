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
	"go.uber.org/multierr"

	"github.com/atmosfood/storefront-backend/api/routes"
	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/internal/bulkflow"
	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/internal/checkout"
	"github.com/atmosfood/storefront-backend/internal/fulfillment"
	"github.com/atmosfood/storefront-backend/internal/orders"
	"github.com/atmosfood/storefront-backend/internal/pricing"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/db"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/metrics"
	"github.com/atmosfood/storefront-backend/pkg/migrate"
	"github.com/atmosfood/storefront-backend/pkg/redis"
	"github.com/atmosfood/storefront-backend/pkg/types"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	catalogClient, err := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
	if err != nil {
		logg.Error(ctx, "failed to create catalog client", err)
		os.Exit(1)
	}
	catalogService, err := catalog.NewService(catalogClient, logg, storefrontMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}
	// A failed load serves an empty menu; readiness reports it.
	_ = catalogService.Load(ctx)

	areaTable, err := areas.LoadFile(cfg.Delivery.AreaTablePath)
	if err != nil {
		logg.Error(ctx, "failed to load delivery areas", err)
		os.Exit(1)
	}

	geocoder, err := newGeocoder(cfg)
	if err != nil {
		logg.Error(ctx, "failed to create geocoder", err)
		os.Exit(1)
	}
	addressService, err := address.NewService(address.ServiceParams{
		Areas:     areaTable,
		Geocoder:  geocoder,
		Kitchen:   types.GeoPoint{Lat: cfg.Delivery.KitchenLat, Lng: cfg.Delivery.KitchenLng},
		Timeout:   cfg.Geocoding.Timeout,
		Limiter:   redisClient,
		RateLimit: int64(cfg.Geocoding.RateLimit),
		Window:    cfg.Geocoding.RateWindow,
		Metrics:   storefrontMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create address service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(
		cart.NewRedisStore(redisClient, cfg.Session.CartTTL, cfg.Session.StagingTTL),
		catalogService,
		cfg.Nudge,
		logg,
		storefrontMetrics,
	)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	flowService, err := bulkflow.NewService(bulkflow.NewRedisStore(redisClient, cfg.Session.FlowTTL), catalogService, cartService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create flow service", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Store:    fulfillment.NewRedisStore(redisClient, cfg.Session.FulfillmentTTL),
		Areas:    areaTable,
		Resolver: addressService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create fulfillment service", err)
		os.Exit(1)
	}

	pricingEngine, err := pricing.NewEngine(cfg.Delivery, areaTable)
	if err != nil {
		logg.Error(ctx, "failed to create pricing engine", err)
		os.Exit(1)
	}

	ordersClient, err := orders.NewClient(cfg.Orders.BaseURL, cfg.Orders.Timeout, orders.WithMetrics(storefrontMetrics))
	if err != nil {
		logg.Error(ctx, "failed to create orders client", err)
		os.Exit(1)
	}

	events := newOrderEvents(cfg, dbClient.DB(), logg)

	orderRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Upstream: ordersClient,
		Events:   events,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:       cartService,
		Fulfillment: fulfillmentService,
		Pricing:     pricingEngine,
		Upstream:    ordersClient,
		Pending:     checkout.NewPendingRepository(dbClient.DB()),
		Orders:      orderRepo,
		Tx:          dbClient,
		Locks:       redisClient,
		Events:      events,
		Metrics:     storefrontMetrics,
		Logger:      logg,
		PendingTTL:  cfg.Checkout.PendingTTL,
		LockTTL:     cfg.Checkout.ProcessingLockTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
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
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"policy":   cfg.Delivery.Policy,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			httpMetrics,
			catalogService,
			areaTable,
			addressService,
			cartService,
			flowService,
			fulfillmentService,
			checkoutService,
			ordersService,
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	closeErr := server.Shutdown(shutdownCtx)
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", closeErr)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logg.Info(shutdownCtx, "api server stopped")
}
