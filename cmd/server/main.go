// Package main runs the venue matching HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/config"
	"github.com/martinmuron/prostormat-sub002/internal/auth"
	"github.com/martinmuron/prostormat-sub002/internal/backfill"
	"github.com/martinmuron/prostormat-sub002/internal/broadcasts"
	"github.com/martinmuron/prostormat-sub002/internal/districts"
	"github.com/martinmuron/prostormat-sub002/internal/eventrequests"
	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/middleware"
	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/internal/notify"
	"github.com/martinmuron/prostormat-sub002/internal/venues"
	"github.com/martinmuron/prostormat-sub002/pkg/database"
	"github.com/martinmuron/prostormat-sub002/pkg/logger"
	"github.com/martinmuron/prostormat-sub002/pkg/queue"
	"github.com/martinmuron/prostormat-sub002/pkg/redis"
	"github.com/martinmuron/prostormat-sub002/pkg/response"
	"github.com/martinmuron/prostormat-sub002/pkg/storage"
)

type handlers struct {
	venues     *venues.Handler
	broadcasts *broadcasts.Handler
	backfill   *backfill.Handler
	districts  *districts.Handler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "prostormat-api")
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

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	overrides, err := location.LoadOverrides(cfg.Districts.OverridesFile)
	if err != nil {
		log.Fatal("district overrides", zap.Error(err))
	}
	normalizer := location.NewNormalizer(overrides)
	log.Info("location normalizer ready", zap.Int("overrides", normalizer.Overrides()))

	var publisher broadcasts.Publisher
	switch cfg.Notifier.Transport {
	case config.TransportAMQP:
		p := notify.NewPublisher(cfg.Notifier.AMQPURL, log)
		defer p.Close()
		publisher = p
	default:
		rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = queue.NewQueue(rdb, log)
	}

	var exportStore districts.ObjectStore
	if cfg.AWS.ExportsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, log)
		if err != nil {
			log.Warn("s3 disabled, exports are streamed", zap.Error(err))
		} else {
			exportStore = s3Client
		}
	}

	venueRepo := venues.NewRepository(pool)
	matcher := venues.NewMatcher(venueRepo, normalizer, log)
	broadcastRepo := broadcasts.NewRepository(pool)
	requestRepo := eventrequests.NewRepository(pool)

	svc := broadcasts.NewService(broadcastRepo, matcher, venueRepo, publisher, log)
	linker := broadcasts.NewLinker(requestRepo, broadcastRepo, matcher, cfg.Backfill.LinkWindow, log)
	runner := backfill.NewRunner(requestRepo, linker, backfill.Options{
		Workers:   cfg.Backfill.Workers,
		BatchSize: cfg.Backfill.BatchSize,
	}, log)
	auditor := districts.NewAuditor(venueRepo, normalizer, log)

	h := handlers{
		venues:     venues.NewHandler(matcher, normalizer, log),
		broadcasts: broadcasts.NewHandler(svc, linker, log),
		backfill:   backfill.NewHandler(runner),
		districts:  districts.NewHandler(auditor, districts.NewExporter(exportStore, log), log),
	}
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpireHours)
	router := newRouter(h, jwtService, cfg.Server.CORSAllowedOrigins, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func newRouter(h handlers, tokens middleware.TokenValidator, corsOrigins string, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.Logger(log))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api/v1")
	{
		api.GET("/locations/resolve", h.venues.ResolveLocation)
		api.POST("/matches", h.venues.Match)
		api.POST("/broadcasts", h.broadcasts.Create)
		api.GET("/broadcasts/:id", h.broadcasts.Get)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(tokens), middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/broadcasts/:id/resend", h.broadcasts.Resend)
		admin.POST("/event-requests/:id/link", h.broadcasts.LinkEventRequest)
		admin.POST("/backfill", h.backfill.Run)
		admin.GET("/districts/audit", h.districts.Audit)
		admin.POST("/districts/apply", h.districts.Apply)
		admin.POST("/districts/audit/export", h.districts.Export)
	}
	return router
}
