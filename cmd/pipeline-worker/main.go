package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/citymotion/tripfacts/api"
	"github.com/citymotion/tripfacts/api/routes"
	"github.com/citymotion/tripfacts/internal/notify"
	"github.com/citymotion/tripfacts/internal/pipeline"
	"github.com/citymotion/tripfacts/internal/runlog"
	"github.com/citymotion/tripfacts/internal/trigger"
	"github.com/citymotion/tripfacts/internal/warehouse"
	"github.com/citymotion/tripfacts/internal/worker"
	"github.com/citymotion/tripfacts/pkg/bigquery"
	"github.com/citymotion/tripfacts/pkg/config"
	"github.com/citymotion/tripfacts/pkg/db"
	"github.com/citymotion/tripfacts/pkg/instance"
	"github.com/citymotion/tripfacts/pkg/logger"
	"github.com/citymotion/tripfacts/pkg/metrics"
	"github.com/citymotion/tripfacts/pkg/migrate"
	"github.com/citymotion/tripfacts/pkg/pubsub"
	"github.com/citymotion/tripfacts/pkg/redis"
	"github.com/citymotion/tripfacts/pkg/storage"
	"github.com/citymotion/tripfacts/pkg/storage/local"
	"github.com/citymotion/tripfacts/pkg/storage/object"
)

const lockKeyFormat = "tripfacts:pipeline-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "pipeline-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "pipeline-worker"

	logg = logger.New(logger.Options{
		ServiceName: "pipeline-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	deps := pipeline.Deps{
		Logger:  logg,
		Metrics: pipelineMetrics,
	}
	routeDeps := routes.Deps{Registry: registry}

	inputStore, dimStore, dimName, outputStore, outputRoot, err := buildStores(ctx, cfg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		os.Exit(1)
	}
	deps.Input = inputStore
	deps.Dimension = dimStore
	deps.DimensionName = dimName
	deps.Output = outputStore
	deps.OutputRoot = outputRoot
	if pinger, ok := inputStore.(storage.Pinger); ok {
		routeDeps.Storage = pinger
	}

	if cfg.DB.Enabled() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(ctx, "error closing database", err)
			}
		}()

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}

		repo := runlog.NewRepository(dbClient.DB())
		deps.Recorder = runlog.NewRecorder(repo)
		routeDeps.DB = dbClient
		routeDeps.Runs = repo
	}

	var lock worker.Lock
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()

		lock, err = worker.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Trigger.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create run lock", err)
			os.Exit(1)
		}
		routeDeps.Redis = redisClient
	}

	if cfg.BigQuery.Export && cfg.GCP.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "error closing bigquery", err)
			}
		}()

		exporter, err := warehouse.New(bqClient, warehouse.Config{
			DailyTable:        cfg.BigQuery.DailyTable,
			DailyCountryTable: cfg.BigQuery.DailyCountryTable,
		})
		if err != nil {
			logg.Error(ctx, "failed to create warehouse exporter", err)
			os.Exit(1)
		}
		deps.Exporter = exporter
		routeDeps.BigQuery = bqClient
	}

	if cfg.PubSub.Publish && cfg.GCP.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub", err)
			}
		}()

		notifier, err := notify.NewPublisher(psClient, logg)
		if err != nil {
			logg.Error(ctx, "failed to create run notifier", err)
			os.Exit(1)
		}
		deps.Notifier = notifier
	}

	runner, err := pipeline.NewRunner(deps)
	if err != nil {
		logg.Error(ctx, "failed to create pipeline runner", err)
		os.Exit(1)
	}

	source, err := buildSource(cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to create trigger source", err)
		os.Exit(1)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logg.Error(ctx, "error closing trigger source", err)
		}
	}()

	service, err := worker.NewService(worker.ServiceParams{
		Logger: logg,
		Source: source,
		Runner: runner,
		Lock:   lock,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	server := api.NewServer(":"+cfg.App.Port, routes.NewRouter(cfg, logg, routeDeps))
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting pipeline worker")

	runErr := service.Run(ctx)

	if err := server.Shutdown(context.Background()); err != nil {
		logg.Error(ctx, "error shutting down ops server", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "pipeline worker stopped unexpectedly", runErr)
		os.Exit(1)
	}

	logg.Info(ctx, "pipeline worker shutting down gracefully")
}

func buildSource(cfg *config.Config, logg *logger.Logger) (trigger.Source, error) {
	if cfg.Trigger.UseRabbit() {
		return trigger.NewRabbitSource(cfg.Trigger.RabbitURL, cfg.Trigger.RabbitQueue, logg)
	}
	return trigger.NewTickerSource(cfg.Trigger.Interval, cfg.Pipeline.Watermark, nil), nil
}

func buildStores(ctx context.Context, cfg *config.Config) (input, dim storage.Store, dimName string, output storage.Store, outputRoot string, err error) {
	pc := cfg.Pipeline
	if pc.InputDir == "" || pc.DimensionPath == "" || pc.OutputDir == "" {
		err = fmt.Errorf("pipeline input, dimension and output locations are required")
		return
	}

	dimDir := path.Dir(pc.DimensionPath)
	dimName = path.Base(pc.DimensionPath)

	if cfg.Storage.IsObject() {
		if input, err = object.New(ctx, cfg.Storage, pc.InputDir); err != nil {
			return
		}
		if dim, err = object.New(ctx, cfg.Storage, dimDir); err != nil {
			return
		}
		if output, err = object.New(ctx, cfg.Storage, pc.OutputDir); err != nil {
			return
		}
		outputRoot = fmt.Sprintf("s3://%s/%s", cfg.Storage.S3Bucket, pc.OutputDir)
		return
	}

	if input, err = local.New(pc.InputDir); err != nil {
		return
	}
	if dim, err = local.New(dimDir); err != nil {
		return
	}
	if output, err = local.New(pc.OutputDir); err != nil {
		return
	}
	outputRoot = pc.OutputDir
	return
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
