// Package main links every historical event request to a broadcast once and
// prints the run report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/config"
	"github.com/martinmuron/prostormat-sub002/internal/backfill"
	"github.com/martinmuron/prostormat-sub002/internal/broadcasts"
	"github.com/martinmuron/prostormat-sub002/internal/eventrequests"
	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/venues"
	"github.com/martinmuron/prostormat-sub002/pkg/database"
	"github.com/martinmuron/prostormat-sub002/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	workers := flag.Int("workers", cfg.Backfill.Workers, "concurrent link workers")
	batch := flag.Int("batch", cfg.Backfill.BatchSize, "event requests per page")
	flag.Parse()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "prostormat-backfill")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	overrides, err := location.LoadOverrides(cfg.Districts.OverridesFile)
	if err != nil {
		log.Fatal("district overrides", zap.Error(err))
	}
	matcher := venues.NewMatcher(venues.NewRepository(pool), location.NewNormalizer(overrides), log)
	requestRepo := eventrequests.NewRepository(pool)

	pending, err := requestRepo.CountUnlinked(ctx)
	if err != nil {
		log.Fatal("count unlinked event requests", zap.Error(err))
	}
	log.Info("backfill starting", zap.Int("pending", pending))

	linker := broadcasts.NewLinker(requestRepo, broadcasts.NewRepository(pool), matcher, cfg.Backfill.LinkWindow, log)
	runner := backfill.NewRunner(requestRepo, linker, backfill.Options{Workers: *workers, BatchSize: *batch}, log)

	report, err := runner.Run(ctx)
	if err != nil {
		log.Error("backfill failed", zap.Error(err))
	}
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	if err != nil {
		os.Exit(1)
	}
}
