package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/joho/godotenv"

	"github.com/citymotion/tripfacts/internal/notify"
	"github.com/citymotion/tripfacts/internal/pipeline"
	"github.com/citymotion/tripfacts/internal/runlog"
	"github.com/citymotion/tripfacts/internal/warehouse"
	"github.com/citymotion/tripfacts/pkg/bigquery"
	"github.com/citymotion/tripfacts/pkg/config"
	"github.com/citymotion/tripfacts/pkg/db"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
	"github.com/citymotion/tripfacts/pkg/pubsub"
	"github.com/citymotion/tripfacts/pkg/storage"
	"github.com/citymotion/tripfacts/pkg/storage/local"
	"github.com/citymotion/tripfacts/pkg/storage/object"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "pipeline"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	input := flag.String("input", "", "directory holding trips_<date>.csv files")
	dim := flag.String("dim", "", "path to the riders JSONL dimension file")
	out := flag.String("out", "", "output directory for the facts partition")
	date := flag.String("date", "", "watermark date (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pipeline",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	params := pipeline.Params{
		InputDir:      firstNonEmpty(*input, cfg.Pipeline.InputDir),
		DimensionPath: firstNonEmpty(*dim, cfg.Pipeline.DimensionPath),
		OutputDir:     firstNonEmpty(*out, cfg.Pipeline.OutputDir),
		Watermark:     firstNonEmpty(*date, cfg.Pipeline.Watermark),
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"watermark": params.Watermark,
	})

	if err := params.Validate(); err != nil {
		exitErr(ctx, logg, err)
	}

	deps, cleanup, err := buildDeps(ctx, cfg, logg, params)
	if err != nil {
		exitErr(ctx, logg, err)
	}
	defer cleanup()

	runner, err := pipeline.NewRunner(deps)
	if err != nil {
		exitErr(ctx, logg, err)
	}

	result, err := runner.Run(ctx, params.Watermark)
	if err != nil {
		exitErr(ctx, logg, err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitErr(ctx, logg, err)
	}
	fmt.Println(string(encoded))
}

// buildDeps assembles the runner wiring: stores per the configured backend
// plus whichever optional sinks (run history, warehouse export, pubsub
// notify) the environment enables.
func buildDeps(ctx context.Context, cfg *config.Config, logg *logger.Logger, params pipeline.Params) (pipeline.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := pipeline.Deps{Logger: logg}

	inputStore, dimStore, dimName, outputStore, outputRoot, err := buildStores(ctx, cfg, params)
	if err != nil {
		return deps, cleanup, err
	}
	deps.Input = inputStore
	deps.Dimension = dimStore
	deps.DimensionName = dimName
	deps.Output = outputStore
	deps.OutputRoot = outputRoot

	if cfg.DB.Enabled() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = dbClient.Close() })
		deps.Recorder = runlog.NewRecorder(runlog.NewRepository(dbClient.DB()))
	}

	if cfg.BigQuery.Export && cfg.GCP.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = bqClient.Close() })

		exporter, err := warehouse.New(bqClient, warehouse.Config{
			DailyTable:        cfg.BigQuery.DailyTable,
			DailyCountryTable: cfg.BigQuery.DailyCountryTable,
		})
		if err != nil {
			return deps, cleanup, err
		}
		deps.Exporter = exporter
	}

	if cfg.PubSub.Publish && cfg.GCP.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = psClient.Close() })

		notifier, err := notify.NewPublisher(psClient, logg)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Notifier = notifier
	}

	return deps, cleanup, nil
}

func buildStores(ctx context.Context, cfg *config.Config, params pipeline.Params) (input, dim storage.Store, dimName string, output storage.Store, outputRoot string, err error) {
	dimDir := path.Dir(params.DimensionPath)
	dimName = path.Base(params.DimensionPath)

	if cfg.Storage.IsObject() {
		if input, err = object.New(ctx, cfg.Storage, params.InputDir); err != nil {
			return
		}
		if dim, err = object.New(ctx, cfg.Storage, dimDir); err != nil {
			return
		}
		if output, err = object.New(ctx, cfg.Storage, params.OutputDir); err != nil {
			return
		}
		outputRoot = fmt.Sprintf("s3://%s/%s", cfg.Storage.S3Bucket, params.OutputDir)
		return
	}

	if input, err = local.New(params.InputDir); err != nil {
		return
	}
	if dim, err = local.New(dimDir); err != nil {
		return
	}
	if output, err = local.New(params.OutputDir); err != nil {
		return
	}
	outputRoot = params.OutputDir
	return
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func exitErr(ctx context.Context, logg *logger.Logger, err error) {
	logg.Error(ctx, "pipeline run failed", err)
	os.Exit(pkgerrors.ExitStatusFor(err))
}
