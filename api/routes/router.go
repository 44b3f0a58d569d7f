package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citymotion/tripfacts/api/controllers"
	"github.com/citymotion/tripfacts/api/middleware"
	"github.com/citymotion/tripfacts/internal/runlog"
	"github.com/citymotion/tripfacts/pkg/config"
	"github.com/citymotion/tripfacts/pkg/logger"
)

// Deps carries the optional backends the ops endpoints report on. Nil fields
// are skipped by readiness.
type Deps struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Storage  controllers.Pinger
	BigQuery controllers.Pinger
	Runs     runlog.Repository
	Registry *prometheus.Registry
}

// NewRouter builds the worker ops surface: health, metrics and run history.
func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
		"db":       deps.DB,
		"redis":    deps.Redis,
		"storage":  deps.Storage,
		"bigquery": deps.BigQuery,
	}))

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/runs/latest", controllers.LatestRun(deps.Runs, logg))

	return r
}
