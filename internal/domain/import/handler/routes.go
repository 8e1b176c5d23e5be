package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterConfig holds the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Health backs /healthz; nil always reports ok.
	Health func(ctx context.Context) error
}

// NewRouter maps the import endpoints and the operational endpoints.
func NewRouter(h *ImportHandler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", UserIDHeader},
		ExposedHeaders: []string{"Content-Disposition", "Location"},
		MaxAge:         300,
	}).Handler)

	r.Get("/healthz", healthz(cfg.Health, logger))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	limiter := newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	r.Route("/v1/imports", func(r chi.Router) {
		r.Use(requireUser(logger))
		r.Use(limiter.middleware(logger))

		r.Post("/", h.Analyze)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Cancel)
			r.Put("/mapping", h.ConfirmMapping)
			r.Post("/mapping/back", h.BackToMapping)
			r.Put("/destination", h.SetDestination)
			r.Patch("/items", h.SetSelection)
			r.Post("/execute", h.Execute)
			r.Get("/report.csv", h.Report)
		})
	})

	return r
}

func healthz(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Warn("health check failed", slog.Any("error", err))
				writeError(w, r, logger, errUnavailable)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
