// Package http is the HTTP interface layer: the chi route tree, the server
// lifecycle, and the middleware chain in front of the handlers.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/internal/interfaces/http/handlers"
	"github.com/loanlens/loanlens/internal/interfaces/http/middleware"
)

// RouterConfig aggregates everything the route tree needs.
type RouterConfig struct {
	Documents *handlers.DocumentHandler
	Analysis  *handlers.AnalysisHandler
	Chat      *handlers.ChatHandler
	Highlight *handlers.HighlightHandler
	Health    *handlers.HealthHandler

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	// MetricsHandler serves /metrics; nil leaves the endpoint unregistered.
	MetricsHandler http.Handler

	// CORSOrigins lists allowed cross-origin callers; empty disables CORS.
	CORSOrigins []string
}

// NewRouter builds the complete route tree with the standard middleware
// chain: request id, panic recovery, request logging, metrics, CORS.
func NewRouter(cfg RouterConfig) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogging(log.Named("http"), middleware.DefaultLoggingConfig()))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	}

	r.Get("/health", cfg.Health.Health)
	r.Get("/version", cfg.Health.Version)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/documents", func(docs chi.Router) {
			docs.Post("/", cfg.Documents.Upload)
			docs.Get("/", cfg.Documents.List)

			docs.Route("/{id}", func(doc chi.Router) {
				doc.Get("/", cfg.Documents.Get)
				doc.Get("/summary", cfg.Analysis.Summary)
				doc.Get("/red-flags", cfg.Analysis.RedFlags)
				doc.Get("/hidden-clauses", cfg.Analysis.HiddenClauses)
				doc.Get("/financial-terms", cfg.Analysis.FinancialTerms)
				doc.Post("/chat", cfg.Chat.Ask)
				doc.Post("/highlight", cfg.Highlight.Activate)
				doc.Delete("/highlight", cfg.Highlight.Clear)
			})
		})
	})

	return r
}
