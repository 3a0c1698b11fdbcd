package rest

import (
	"net/http"
	"os"
	"strings"

	"github.com/commentpilot/commentpilot/internal/api/rest/handlers"
	customMiddleware "github.com/commentpilot/commentpilot/internal/api/rest/middleware"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds the HTTP router and dependencies
type Router struct {
	router   *chi.Mux
	logger   *logger.Logger
	handlers *handlers.Handlers
	metrics  *metrics.Metrics
}

// NewRouter creates a new HTTP router
func NewRouter(log *logger.Logger, h *handlers.Handlers, m *metrics.Metrics) *Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(customMiddleware.Metrics(m))

	// CORS - Configure allowed origins from environment
	allowedOrigins := []string{"http://localhost:3000"}
	if originsEnv := os.Getenv("ALLOWED_ORIGINS"); originsEnv != "" {
		allowedOrigins = strings.Split(originsEnv, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	return &Router{
		router:   r,
		logger:   log,
		handlers: h,
		metrics:  m,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	// Prometheus metrics endpoint
	r.router.Handle("/metrics", promhttp.Handler())

	// Health endpoints
	r.router.Get("/health", r.handlers.Health.Health)
	r.router.Get("/ready", r.handlers.Health.Ready)

	// Meta webhook endpoint. Verification and delivery share a URL; Meta
	// distinguishes them by method. No rate limiting here: dropping a
	// delivery gets the subscription disabled.
	r.router.Route("/webhooks/instagram", func(router chi.Router) {
		router.Get("/", r.handlers.Webhook.Verify)
		router.Post("/", r.handlers.Webhook.Receive)
	})

	// API v1
	r.router.Route("/api/v1", func(router chi.Router) {
		router.Use(customMiddleware.RateLimitWithConfig(100, 200, r.logger))

		router.Route("/workspaces/{workspaceID}", func(router chi.Router) {
			// Rules
			router.Route("/rules", func(router chi.Router) {
				router.Get("/", r.handlers.Rule.List)
				router.Post("/", r.handlers.Rule.Create)
				router.Get("/{id}", r.handlers.Rule.Get)
				router.Put("/{id}", r.handlers.Rule.Update)
				router.Delete("/{id}", r.handlers.Rule.Delete)
				router.Post("/{id}/enable", r.handlers.Rule.Enable)
				router.Post("/{id}/disable", r.handlers.Rule.Disable)
			})

			// Connected accounts
			router.Route("/accounts", func(router chi.Router) {
				router.Get("/", r.handlers.Account.List)
				router.Post("/", r.handlers.Account.Connect)
			})

			// Audit trail
			router.Get("/logs", r.handlers.Log.List)
			router.Get("/events", r.handlers.Log.ListEvents)
		})
	})
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.router
}
