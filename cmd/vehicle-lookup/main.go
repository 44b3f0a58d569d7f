package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/citymotion/tripfacts/internal/vehicle"
	"github.com/citymotion/tripfacts/pkg/config"
	"github.com/citymotion/tripfacts/pkg/env"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "vehicle-lookup"})

	_ = godotenv.Load()

	save := flag.Bool("save", false, "save raw and normalized artifacts as JSON files")
	outDir := flag.String("out", ".", "directory for saved artifacts")
	timeout := flag.Duration("timeout", 0, "per-request timeout (overrides TRIPFACTS_RDW_TIMEOUT)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vehicle-lookup [-save] [-out dir] [-timeout 10s] <PLATE>")
		os.Exit(2)
	}
	plate := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "vehicle-lookup",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	rdwCfg := cfg.RDW
	if rdwCfg.AppToken == "" {
		rdwCfg.AppToken = env.Get("RDW_APP_TOKEN", "")
	}
	if *timeout > 0 {
		rdwCfg.Timeout = *timeout
	}

	ctx := logg.WithField(context.Background(), "plate", plate)

	client := vehicle.NewClient(rdwCfg, logg)
	result, err := client.Lookup(ctx, plate)
	if err != nil {
		logg.Error(ctx, "lookup failed", err)
		os.Exit(pkgerrors.ExitStatusFor(err))
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logg.Error(ctx, "failed to encode result", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))

	if !result.Found() {
		fmt.Fprintln(os.Stderr, "plate not found in RDW base dataset")
	}

	if *save {
		paths, err := vehicle.SaveArtifacts(result, *outDir, time.Now())
		if err != nil {
			logg.Error(ctx, "failed to save artifacts", err)
			os.Exit(pkgerrors.ExitStatusFor(err))
		}
		fmt.Println()
		for _, p := range paths {
			fmt.Println("saved:", p)
		}
	}
}

