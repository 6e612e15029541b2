package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atmosfood/storefront-backend/api/controllers"
	"github.com/atmosfood/storefront-backend/api/middleware"
	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/internal/bulkflow"
	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/catalog"
	checkoutsvc "github.com/atmosfood/storefront-backend/internal/checkout"
	"github.com/atmosfood/storefront-backend/internal/fulfillment"
	"github.com/atmosfood/storefront-backend/internal/orders"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/metrics"
	"github.com/atmosfood/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	httpMetrics *metrics.HTTPMetrics,
	catalogService catalog.Service,
	areaTable *areas.Table,
	addressService address.Service,
	cartService cart.Service,
	flowService bulkflow.Service,
	fulfillmentService fulfillment.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutSessionLimit,
	)
	lookupPolicy := middleware.NewRateLimitPolicy(
		"order-lookup",
		cfg.RateLimit.LookupWindow,
		cfg.RateLimit.LookupIPLimit,
		cfg.RateLimit.LookupSessionLimit,
	)

	var redisPinger controllers.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger, catalogService))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/menu", controllers.Menu(catalogService, logg))
		r.Get("/menu/drinks", controllers.MenuDrinks(catalogService))
		r.Get("/proteins", controllers.Proteins(catalogService))
		r.Get("/areas", controllers.Areas(areaTable))
		r.Get("/areas/suggest", controllers.AreaSuggest(addressService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(checkoutService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, logg))
				r.Patch("/items/{lineId}", controllers.CartUpdateLine(cartService, logg))
				r.Delete("/items/{lineId}", controllers.CartRemoveLine(cartService, logg))

				r.Route("/drinks/staging", func(r chi.Router) {
					r.Post("/", controllers.DrinksStagingOpen(cartService, logg))
					r.Get("/", controllers.DrinksStagingFetch(cartService, logg))
					r.Delete("/", controllers.DrinksStagingDiscard(cartService, logg))
					r.Post("/items", controllers.DrinksStagingAdd(cartService, logg))
					r.Patch("/items/{lineId}", controllers.DrinksStagingAdjust(cartService, logg))
					r.Post("/confirm", controllers.DrinksStagingConfirm(cartService, logg))
				})
			})

			r.Route("/flows", func(r chi.Router) {
				r.Post("/", controllers.FlowStart(flowService, logg))
				r.Get("/{flowId}", controllers.FlowFetch(flowService, logg))
				r.Delete("/{flowId}", controllers.FlowCancel(flowService, logg))
				r.Post("/{flowId}/actions", controllers.FlowAction(flowService, logg))
				r.Post("/{flowId}/confirm", controllers.FlowConfirm(flowService, logg))
			})

			r.Route("/fulfillment", func(r chi.Router) {
				r.Get("/", controllers.FulfillmentFetch(fulfillmentService, logg))
				r.Delete("/", controllers.FulfillmentReset(fulfillmentService, logg))
				r.Put("/method", controllers.FulfillmentSetMethod(fulfillmentService, logg))
				r.Put("/contact", controllers.FulfillmentSetContact(fulfillmentService, logg))
				r.Put("/area", controllers.FulfillmentSelectArea(fulfillmentService, logg))
				r.Post("/address", controllers.FulfillmentResolveAddress(fulfillmentService, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.With(middleware.RateLimit(checkoutPolicy, redisClient, logg)).Post("/", controllers.Checkout(checkoutService, logg))
				r.Get("/pending/{token}", controllers.CheckoutPendingFetch(checkoutService, logg))
				r.Post("/pending/{token}/confirm", controllers.CheckoutPendingConfirm(checkoutService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.RateLimit(lookupPolicy, redisClient, logg)).Get("/", controllers.OrderList(ordersService, logg))
				r.With(middleware.RateLimit(lookupPolicy, redisClient, logg)).Get("/stats", controllers.OrderStats(ordersService, logg))
				r.Get("/{orderId}", controllers.OrderFetch(ordersService, logg))
				r.Post("/{orderId}/refresh", controllers.OrderRefresh(ordersService, logg))
			})
		})
	})

	if cfg.Internal.Token != "" {
		r.Route("/api/internal/v1", func(r chi.Router) {
			r.Use(middleware.InternalToken(cfg.Internal.Token, logg))
			r.Patch("/orders/{orderId}/status", controllers.OrderUpdateStatus(ordersService, logg))
		})
	}

	return r
}
