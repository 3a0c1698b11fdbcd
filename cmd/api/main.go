package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commentpilot/commentpilot/internal/api/rest"
	"github.com/commentpilot/commentpilot/internal/api/rest/handlers"
	"github.com/commentpilot/commentpilot/internal/engine"
	"github.com/commentpilot/commentpilot/internal/gateway"
	"github.com/commentpilot/commentpilot/internal/ingress"
	"github.com/commentpilot/commentpilot/internal/repository/postgres"
	"github.com/commentpilot/commentpilot/internal/services"
	"github.com/commentpilot/commentpilot/internal/workers"
	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/database"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
	"github.com/commentpilot/commentpilot/pkg/validator"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; in deployments the environment is set
	// by the orchestrator and no .env file exists.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting CommentPilot API",
		logger.String("version", cfg.App.Version),
		logger.String("environment", cfg.App.Environment),
	)

	m := metrics.New()

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis backs cross-instance webhook dedup and the active-rule cache.
	// Without it a single instance still works on in-memory fallbacks.
	var deduper ingress.Deduper
	var ruleCache services.RuleCache
	redis, err := database.NewRedisClient(cfg, log)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory dedup and no rule cache", logger.Err(err))
		deduper = ingress.NewMemoryDeduper(cfg.Webhook.DedupTTL)
	} else {
		defer redis.Close()
		deduper = ingress.NewRedisDeduper(redis, cfg.Webhook.DedupTTL, log)
		ruleCache = redis
	}

	// Repositories go through the circuit-breaker wrapper
	ruleRepo := postgres.NewRuleRepository(db)
	logRepo := postgres.NewLogRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	eventRepo := postgres.NewEventRepository(db)

	// Services
	ruleService := services.NewRuleService(ruleRepo, ruleCache, validator.DefaultValidator, log)
	resolver := services.NewResolver(accountRepo, ruleRepo, cfg, log, m)

	// Reply pipeline
	instagramClient := gateway.NewInstagramClient(cfg, log, m)
	ruleEngine := engine.New(ruleService, logRepo, instagramClient, log, m,
		engine.WithReplyDelay(cfg.Webhook.ReplyDelay),
	)
	processor := ingress.NewProcessor(resolver, ruleEngine, eventRepo, instagramClient, log, m)

	// Log retention
	retentionWorker := workers.NewLogRetentionWorker(logRepo, log, cfg.Webhook.LogRetention, time.Hour)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	retentionWorker.Start(workerCtx)

	// HTTP layer
	var redisChecker handlers.HealthChecker
	if redis != nil {
		redisChecker = redis
	}
	h := handlers.NewHandlers(
		log,
		m,
		cfg,
		ruleService,
		accountRepo,
		logRepo,
		eventRepo,
		processor,
		deduper,
		&handlers.HealthCheckers{
			DB:    db,
			Redis: redisChecker,
		},
	)

	router := rest.NewRouter(log, h, m)
	router.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("API server listening", logger.String("address", addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))

		retentionWorker.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
