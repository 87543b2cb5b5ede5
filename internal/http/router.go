package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rogerio-castellano/inventory-sync/internal/auth"
	"github.com/rogerio-castellano/inventory-sync/internal/http/handlers"
	rl "github.com/rogerio-castellano/inventory-sync/internal/http/rate_limiter"
	"github.com/rogerio-castellano/inventory-sync/internal/metrics"
)

type RouterConfig struct {
	Server  *handlers.Server
	Signer  *auth.Signer
	Limiter *rl.Limiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	s := cfg.Server

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", handlers.HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Signer))
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter))
		}

		r.Get("/locations", s.ListLocationsHandler)
		r.Route("/locations/{location}", func(r chi.Router) {
			r.Get("/items", s.ListItemsHandler)
			r.Post("/items/import", s.ImportItemsHandler)
			r.Get("/items/{name}", s.GetItemHandler)
			r.Put("/items/{name}", s.PutItemHandler)
			r.Patch("/items/{name}", s.UpdateQuantityHandler)
			r.Delete("/items/{name}", s.DeleteItemHandler)

			r.Get("/summary", s.SummaryHandler)
			r.Get("/stream", s.StreamHandler)
			r.Get("/status", s.LocationStatusHandler)
			r.Post("/refresh", s.RefreshLocationHandler)
			r.Get("/snapshot", s.LocationSnapshotHandler)

			r.Get("/recipient", s.GetRecipientHandler)
			r.Put("/recipient", s.PutRecipientHandler)
		})

		r.Get("/thresholds", s.ListThresholdsHandler)
		r.Post("/thresholds", s.RegisterThresholdHandler)
		r.Delete("/thresholds/{name}", s.UnregisterThresholdHandler)

		r.Get("/alerts/history", s.AlertHistoryHandler)
	})

	return r
}
