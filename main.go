package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/api"
	"github.com/Tafsirchy/thikana/internal/cache"
	"github.com/Tafsirchy/thikana/internal/config"
	"github.com/Tafsirchy/thikana/internal/db"
	"github.com/Tafsirchy/thikana/internal/email"
	"github.com/Tafsirchy/thikana/internal/logging"
	"github.com/Tafsirchy/thikana/internal/metrics"
	"github.com/Tafsirchy/thikana/internal/notify"
	"github.com/Tafsirchy/thikana/internal/push"
	"github.com/Tafsirchy/thikana/internal/scheduler"
	"github.com/Tafsirchy/thikana/internal/services"
	"github.com/Tafsirchy/thikana/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks and digest cron), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RunMode != "api" && cfg.RunMode != "bg" && cfg.RunMode != "all" {
		log.Fatalf("Invalid run mode: %s", cfg.RunMode)
	}

	logger, err := logging.New(cfg.LogDevelopment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient, logger); err != nil {
			logger.Error("error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	if err := db.EnsureIndexes(ctx, mongoDb, logger); err != nil {
		logger.Fatal("failed to ensure indexes", zap.Error(err))
	}

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, logger); err != nil {
			logger.Error("error disconnecting from Redis", zap.Error(err))
		}
	}()

	if cfg.MetricsEnabled {
		metrics.Init()
	}

	// Delivery channels
	emailSender, err := email.NewSender(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to initialise email sender", zap.Error(err))
	}
	pushSender, err := push.NewSender(ctx, cfg.FirebaseCredentialsFile, logger)
	if err != nil {
		logger.Fatal("failed to initialise push sender", zap.Error(err))
	}

	// Services
	userService := services.NewUserService(mongoDb, logger)
	listingService := services.NewListingService(mongoDb, logger)
	savedSearchService := services.NewSavedSearchService(mongoDb, logger)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	// Task client; every publish queues the instant fan-out
	taskClient := tasks.NewClient(redisClient)
	defer func() { _ = taskClient.Close() }()
	listingService.SetPublishHook(tasks.PublishHook(taskClient, logger))

	// Alert engine
	sink := notify.NewTaskSink(taskClient, cfg.PublicListingURL, cfg.AlertDigestMaxListings, logger)
	deduper := cache.NewRedisDeduper(redisClient, cfg.AlertDedupTTL)
	instant := alerts.NewInstantDispatcher(savedSearchService, userService, sink,
		alerts.WithDeduper(deduper),
		alerts.WithLogger(logger),
	)
	digest := alerts.NewDigestScheduler(savedSearchService, listingService, userService, sink,
		alerts.WithConcurrency(cfg.AlertDigestConcurrency),
		alerts.WithLogger(logger),
	)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	checks := map[string]api.HealthCheck{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	captureRedis := redisClient
	if cfg.EmailMode != "redis" {
		captureRedis = nil
	}
	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(cfg, captureRedis, checks, shutdownChan, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("service API ListenAndServe error", zap.Error(err))
		}
	}()

	// --- Mode-specific servers ---
	var (
		mainApiSrv *http.Server
		taskSrv    *asynq.Server
		digestCron *scheduler.Scheduler
	)
	runAPI := cfg.RunMode == "api" || cfg.RunMode == "all"
	runBackground := cfg.RunMode == "bg" || cfg.RunMode == "all"
	logger.Info("starting application", zap.String("mode", cfg.RunMode))

	if runAPI {
		mainApiSrv = &http.Server{
			Addr: ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, api.Dependencies{
				Listings:      listingService,
				SavedSearches: savedSearchService,
				Users:         userService,
				Instant:       instant,
				Digest:        digest,
			}, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("main API ListenAndServe error", zap.Error(err))
			}
		}()
	}

	if runBackground {
		processor := tasks.NewTaskProcessor(cfg, listingService, instant, digest,
			emailTemplateService, emailSender, pushSender, userService, logger)
		var mux *asynq.ServeMux
		taskSrv, mux = tasks.SetupServer(cfg, redisClient, processor, logger)
		if err := taskSrv.Start(mux); err != nil {
			logger.Fatal("could not start task server", zap.Error(err))
		}

		digestCron = scheduler.New(taskClient, cfg.AlertDailyCron, cfg.AlertWeeklyCron, logger)
		if err := digestCron.Start(ctx); err != nil {
			logger.Fatal("could not start digest scheduler", zap.Error(err))
		}
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		logger.Info("shutdown requested via service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if digestCron != nil {
		digestCron.Stop()
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("main API server shutdown error", zap.Error(err))
		}
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("service API server shutdown error", zap.Error(err))
	}

	wg.Wait()
	cancel()
	fmt.Println("Server gracefully stopped")
}
