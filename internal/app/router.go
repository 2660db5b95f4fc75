package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/recipe-app/recipe-api/internal/auth"
	"github.com/recipe-app/recipe-api/internal/observability"
	"github.com/recipe-app/recipe-api/internal/platform/httpx"
	"github.com/recipe-app/recipe-api/internal/recipe"
	"github.com/recipe-app/recipe-api/internal/users"
	"github.com/recipe-app/recipe-api/jobs"
)

// Pinger reports backing service health; *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	AuthHandler   *auth.Handler
	UsersHandler  *users.Handler
	RecipeHandler *recipe.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
	Database      Pinger
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", `Method "`+r.Method+`" not allowed.`)
	})

	r.Get("/healthz", healthHandler(params.Database, params.Logger))

	r.Route("/user", func(r chi.Router) {
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
	})
	if params.RecipeHandler != nil {
		r.Route("/recipe", params.RecipeHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func healthHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("request_id", chimw.GetReqID(r.Context())), slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
