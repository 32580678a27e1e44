package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/workflow/internal/api"
	"github.com/meikuraledutech/workflow/internal/config"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/metrics"
	"github.com/meikuraledutech/workflow/postgres"
	"github.com/meikuraledutech/workflow/run"
)

func main() {
	cfg, err := config.Load(os.Getenv("WORKFLOW_CONFIG"))
	if err != nil {
		logging.New(os.Stderr, "error", "text").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.New(pool)

	defs := run.DefinitionKinds{}
	for id, kind := range cfg.Listing.OutputKinds {
		defs[id] = run.OutputKind(kind)
	}

	app := api.New(api.Config{
		Store:               store,
		Resolver:            store,
		Logger:              logger,
		Metrics:             metrics.New(),
		PreviewLimit:        cfg.Context.PreviewLimit,
		LowQualityThreshold: cfg.Listing.LowQualityThreshold,
		Definitions:         defs,
	})

	logger.Info("listening", "addr", cfg.Server.Listen)
	if err := app.Listen(cfg.Server.Listen); err != nil {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
}
