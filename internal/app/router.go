package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/majestrate/infinity-next/internal/auth"
	"github.com/majestrate/infinity-next/internal/bans"
	"github.com/majestrate/infinity-next/internal/boards"
	"github.com/majestrate/infinity-next/internal/observability"
	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/posting"
	"github.com/majestrate/infinity-next/internal/shared"
	"github.com/majestrate/infinity-next/internal/users"
	"github.com/majestrate/infinity-next/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler    *auth.Handler
	PermsHandler   *perms.Handler
	BoardsHandler  *boards.Handler
	BansHandler    *bans.Handler
	PostingHandler *posting.Handler
	UsersHandler   *users.Handler

	JobsHandler *jobs.Handler

	Pool    *pgxpool.Pool
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the public API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("readiness ping failed", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/users", params.UsersHandler.MountRoutes)
	r.Route("/admin", params.PermsHandler.MountRoutes)

	// Board pages, their configuration, bans and the admission pipeline
	// all hang off the same /boards/{board} subtree so permission checks
	// see the board parameter.
	r.Route("/boards", func(r chi.Router) {
		params.BoardsHandler.MountRoutes(r)
		params.BansHandler.MountRoutes(r)
		params.PostingHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	return r
}
