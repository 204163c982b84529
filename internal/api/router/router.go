package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pratik-mahalle/panelbot/internal/api/handlers"
	"github.com/pratik-mahalle/panelbot/internal/api/middleware"
	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Task   *handlers.TaskHandler
	Run    *handlers.RunHandler
	Server *handlers.ServerHandler
}

// New builds the daemon router. limiter may be nil to disable rate limiting.
func New(cfg config.ServerConfig, log *logger.Logger, limiter *middleware.RateLimiter, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Use(middleware.APIKey(cfg.APIKey))

		r.Route("/api/v1/tasks", func(r chi.Router) {
			r.Get("/", h.Task.List)
			r.Post("/", h.Task.Create)
			r.Get("/{id}", h.Task.Get)
			r.Delete("/{id}", h.Task.Delete)
			r.Post("/{id}/enable", h.Task.Enable)
			r.Post("/{id}/disable", h.Task.Disable)
			r.Post("/{id}/run", h.Task.Run)
		})

		r.Route("/api/v1/runs", func(r chi.Router) {
			r.Get("/", h.Run.List)
			r.Get("/{id}", h.Run.Get)
		})

		r.Route("/api/v1/servers", func(r chi.Router) {
			r.Get("/", h.Server.List)
			r.Get("/{id}/status-options", h.Server.StatusOptions)
		})
	})

	return r
}
