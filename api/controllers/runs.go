package controllers

import (
	"errors"
	"net/http"

	"github.com/citymotion/tripfacts/api/responses"
	"github.com/citymotion/tripfacts/internal/runlog"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
)

// LatestRun serves the most recent pipeline run, optionally filtered with
// ?watermark=YYYY-MM-DD.
func LatestRun(repo runlog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if repo == nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "run history is not configured"))
			return
		}

		var (
			run *runlog.Run
			err error
		)
		if watermark := r.URL.Query().Get("watermark"); watermark != "" {
			run, err = repo.LatestByWatermark(ctx, watermark)
		} else {
			run, err = repo.Latest(ctx)
		}

		if err != nil {
			if errors.Is(err, runlog.ErrNoRuns) {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeNotFound, "no pipeline runs recorded"))
				return
			}
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading run history"))
			return
		}

		responses.WriteSuccess(w, run)
	}
}
