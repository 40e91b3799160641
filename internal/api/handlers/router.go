package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Statements *StatementsHandler
	Jobs       *JobsHandler
	View       *ViewHandler

	// UploadLimiter throttles POST /api/statements. Nil disables throttling.
	UploadLimiter *rate.Limiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Requests counts served requests. May be nil.
	Requests middleware.RequestCounter

	Log zerolog.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Log))
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Log, cfg.Requests))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", ListCategories)

		upload := http.Handler(http.HandlerFunc(cfg.Statements.Upload))
		if cfg.UploadLimiter != nil {
			upload = middleware.RateLimit(cfg.UploadLimiter)(upload)
		}
		r.Method(http.MethodPost, "/statements", upload)

		r.Get("/jobs", cfg.Jobs.ListJobs)
		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", cfg.Jobs.GetJob)
			r.Delete("/", cfg.Jobs.DeleteJob)
			r.Post("/retry", cfg.Jobs.RetryJob)
			r.Get("/transactions", cfg.View.Transactions)
			r.Get("/export", cfg.View.Export)
		})
	})

	return r
}
