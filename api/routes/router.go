package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazelbrook/storefront-backend/api/controllers"
	"github.com/hazelbrook/storefront-backend/api/middleware"
	cartsvc "github.com/hazelbrook/storefront-backend/internal/cart"
	"github.com/hazelbrook/storefront-backend/internal/catalog"
	checkoutsvc "github.com/hazelbrook/storefront-backend/internal/checkout"
	"github.com/hazelbrook/storefront-backend/internal/shipping"
	"github.com/hazelbrook/storefront-backend/pkg/config"
	"github.com/hazelbrook/storefront-backend/pkg/db"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
	"github.com/hazelbrook/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	catalogService catalog.Service,
	cartService cartsvc.Service,
	shippingService shipping.Service,
	checkoutService checkoutsvc.Service,
	syncer controllers.IntentSynchronizer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(catalogService, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalogService, logg))
		})
		r.Get("/shipping/rates", controllers.ShippingRates(shippingService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(cartService, logg))
				r.Post("/items", controllers.CartAdd(cartService, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateQuantity(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemove(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
			})

			r.Put("/shipping/option", controllers.ShippingOptionSelect(shippingService, logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/state", controllers.CheckoutState(syncer, cartService, shippingService, logg))
				r.Get("/intent", controllers.CheckoutIntent(syncer, logg))
				r.Post("/retry", controllers.CheckoutRetry(syncer, cartService, logg))
				r.Post("/confirm", controllers.CheckoutConfirm(checkoutService, logg))
				r.Get("/return", controllers.CheckoutReturn(checkoutService, logg))
			})
		})
	})

	return r
}
