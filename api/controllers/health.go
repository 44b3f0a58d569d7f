package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/citymotion/tripfacts/api/responses"
	"github.com/citymotion/tripfacts/pkg/config"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
)

const envHeader = "X-Tripfacts-Env"

const readyCheckTimeout = 5 * time.Second

// Pinger is the dependency health surface shared by db, redis, storage and
// bigquery clients. Nil dependencies are skipped, so unconfigured optional
// backends never fail readiness.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				responses.WriteError(ctx, logg,
					w, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, name+" not ready"))
				return
			}
			checks[name] = "up"
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}
