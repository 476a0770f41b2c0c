package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trongdv/bookstore/pkg/health"
	"github.com/trongdv/bookstore/pkg/middleware"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/service"
)

// RouterConfig bundles the cross-cutting knobs for the API router.
type RouterConfig struct {
	CORS           CORSConfig
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(
	authService *service.AuthService,
	catalogService *service.CatalogService,
	cartService *service.CartService,
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("api"))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	homeHandler := NewHomeHandler(authService, catalogService, logger)
	cartHandler := NewCartHandler(cartService, checkoutService, logger)
	orderHandler := NewOrderHandler(checkoutService, logger)

	// Public endpoints
	r.Route("/api/home", func(r chi.Router) {
		r.Get("/books", homeHandler.GetBooks)
		r.Get("/books/{id}", homeHandler.GetBook)
		r.Get("/genres", homeHandler.GetGenres)

		r.Post("/login", homeHandler.Login)
		r.Post("/register", homeHandler.Register)
		r.Get("/confirm-email", homeHandler.ConfirmEmail)
		r.Post("/forgot-password", homeHandler.ForgotPassword)
		r.Post("/reset-password", homeHandler.ResetPassword)
	})

	// The gateway return callback authenticates itself with its signature.
	r.Get("/api/cart/vnpay-response", cartHandler.VnPayResponse)

	// Authenticated endpoints
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(Auth(authService.ValidateToken))

		r.Get("/", cartHandler.GetCart)
		r.Get("/count", cartHandler.GetCount)
		r.Post("/items", cartHandler.AddItem)
		r.Delete("/items/{bookId}", cartHandler.RemoveItem)
		r.Post("/checkout", cartHandler.Checkout)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(Auth(authService.ValidateToken))

		r.Get("/", orderHandler.ListMine)
		r.Get("/{id}", orderHandler.Get)
	})

	// Admin endpoints
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(Auth(authService.ValidateToken))
		r.Use(RequireRole(domain.RoleAdmin))

		r.Get("/orders", orderHandler.ListAll)
		r.Put("/orders/{id}/status", orderHandler.UpdateStatus)
	})

	return r
}

// pathParam reads a chi URL parameter.
func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
