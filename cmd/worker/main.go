// Package main runs the background worker: broadcast delivery and the
// scheduled event request backfill.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/config"
	"github.com/martinmuron/prostormat-sub002/internal/backfill"
	"github.com/martinmuron/prostormat-sub002/internal/broadcasts"
	"github.com/martinmuron/prostormat-sub002/internal/eventrequests"
	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/notifier"
	"github.com/martinmuron/prostormat-sub002/internal/notify"
	"github.com/martinmuron/prostormat-sub002/internal/venues"
	"github.com/martinmuron/prostormat-sub002/internal/worker"
	"github.com/martinmuron/prostormat-sub002/pkg/database"
	"github.com/martinmuron/prostormat-sub002/pkg/logger"
	"github.com/martinmuron/prostormat-sub002/pkg/queue"
	"github.com/martinmuron/prostormat-sub002/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "prostormat-worker")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	broadcastRepo := broadcasts.NewRepository(pool)
	hook := notifier.NewClient(notifier.Config{
		URL:        cfg.Notifier.WebhookURL,
		Token:      cfg.Notifier.Token,
		Timeout:    cfg.Notifier.Timeout,
		RetryCount: cfg.Notifier.MaxRetries,
	}, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	switch cfg.Notifier.Transport {
	case config.TransportAMQP:
		processor := worker.NewDeliveryProcessor(broadcastRepo, hook, nil, log)
		consumer := notify.NewConsumer(cfg.Notifier.AMQPURL, processor.Process, processor.GiveUp, log)
		go func() {
			defer close(done)
			if err := consumer.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				log.Error("amqp consumer stopped", zap.Error(err))
			}
		}()
	default:
		rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		jobs := queue.NewQueue(rdb, log)
		logQueueDepth(ctx, jobs, log)
		processor := worker.NewDeliveryProcessor(broadcastRepo, hook, jobs, log)
		go func() {
			defer close(done)
			processor.Run(workerCtx)
		}()
	}

	var scheduler *backfill.Scheduler
	if cfg.Backfill.Schedule != "" {
		overrides, err := location.LoadOverrides(cfg.Districts.OverridesFile)
		if err != nil {
			log.Fatal("district overrides", zap.Error(err))
		}
		matcher := venues.NewMatcher(venues.NewRepository(pool), location.NewNormalizer(overrides), log)
		requestRepo := eventrequests.NewRepository(pool)
		linker := broadcasts.NewLinker(requestRepo, broadcastRepo, matcher, cfg.Backfill.LinkWindow, log)
		runner := backfill.NewRunner(requestRepo, linker, backfill.Options{
			Workers:   cfg.Backfill.Workers,
			BatchSize: cfg.Backfill.BatchSize,
		}, log)
		scheduler = backfill.NewScheduler(runner, cfg.Backfill.Schedule, log)
		if err := scheduler.Start(workerCtx); err != nil {
			log.Fatal("backfill scheduler", zap.Error(err))
		}
	}
	log.Info("worker started", zap.String("transport", cfg.Notifier.Transport))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warn("delivery loop did not stop in time")
	}
	log.Info("worker stopped")
}

// logQueueDepth reports the backlog and dead letters left by earlier runs.
func logQueueDepth(ctx context.Context, jobs *queue.Queue, log *zap.Logger) {
	depth, err := jobs.Len(ctx)
	if err != nil {
		log.Warn("read queue depth", zap.Error(err))
		return
	}
	dead, err := jobs.DeadLetters(ctx)
	if err != nil {
		log.Warn("read dead letter count", zap.Error(err))
		return
	}
	fields := []zap.Field{zap.Int64("pending_jobs", depth), zap.Int64("dead_letters", dead)}
	if dead > 0 {
		log.Warn("delivery dead letters present, resend the affected broadcasts", fields...)
		return
	}
	log.Info("delivery queue", fields...)
}
