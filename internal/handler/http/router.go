package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/checkoutcore/internal/service"
	"github.com/utafrali/checkoutcore/pkg/health"
	"github.com/utafrali/checkoutcore/pkg/middleware"
)

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
	Health   *health.Handler
	// Metrics and Gatherer are optional; without a Gatherer /metrics is not served.
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	// IdentitySecret, when set, makes identity come from a signed X-Identity-Token.
	IdentitySecret string
	RequestTimeout time.Duration
	// RateLimitRPS > 0 enables per-session rate limiting on /api/v1.
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all checkout routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(timeout))
	r.Use(middleware.RequestLogging(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.PrometheusMetrics(cfg.Metrics))
	}
	r.Use(middleware.Tracing("checkoutcore"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	cartHandler := NewCartHandler(cfg.Checkout, logger)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, logger)
	productHandler := NewProductHandler(cfg.Catalog, logger)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		}
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(IdentityFromHeaders(cfg.IdentitySecret, logger))

			r.Get("/cart", cartHandler.GetCart)
			r.Delete("/cart", cartHandler.ClearCart)
			r.Post("/cart/items", cartHandler.AddItem)

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Get("/checkout/attempts", checkoutHandler.ListAttempts)
			r.Get("/checkout/attempts/{id}", checkoutHandler.GetAttempt)
			r.Get("/orders", checkoutHandler.ListOrders)
		})

		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{id}", productHandler.GetProduct)
		r.Put("/products/{id}", productHandler.UpsertProduct)
		r.Patch("/products/{id}/price", productHandler.SetPrice)
	})

	return r
}
