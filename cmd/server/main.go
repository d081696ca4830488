package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/opencrvs/webhooks/internal/api"
	"github.com/opencrvs/webhooks/internal/api/handlers"
	"github.com/opencrvs/webhooks/internal/config"
	"github.com/opencrvs/webhooks/internal/observability"
	"github.com/opencrvs/webhooks/internal/permissions"
	"github.com/opencrvs/webhooks/internal/repository"
	"github.com/opencrvs/webhooks/internal/service"
	"github.com/opencrvs/webhooks/internal/usermgnt"
	"github.com/opencrvs/webhooks/internal/workers"
	"github.com/opencrvs/webhooks/migrations"
	"github.com/opencrvs/webhooks/pkg/database"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Initialize database connection
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Apply schema migrations (service tables, then queue tables)
	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		slog.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}

	if err := migrateRiver(ctx, db); err != nil {
		slog.Error("Failed to apply queue migrations", "error", err)
		os.Exit(1)
	}

	// Initialize metrics (Prometheus pull endpoint)
	var (
		metricsHandler http.Handler
		metrics        *observability.Metrics
	)
	if cfg.MetricsEnabled {
		var meterProvider observability.MeterProviderShutdown
		meterProvider, metricsHandler, metrics, err = observability.NewMeterProvider("webhooks")
		if err != nil {
			slog.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := meterProvider.Shutdown(context.Background()); err != nil {
				slog.Error("Failed to shut down meter provider", "error", err)
			}
		}()
	} else {
		slog.Info("Metrics disabled (METRICS_ENABLED=false)")
	}

	var (
		httpMetrics    observability.HTTPMetrics
		webhookMetrics observability.WebhookMetrics
	)
	if metrics != nil {
		httpMetrics = metrics.HTTP
		webhookMetrics = metrics.Webhooks
	}

	// User management client (owns subscriber records)
	systems := usermgnt.NewClient(usermgnt.ClientOptions{
		BaseURL:           cfg.UserMgntURL,
		RequestsPerSecond: cfg.UserMgntRequestsPerSecond,
	})

	// Repositories; the dispatch path reads through a TTL cache
	registrationsRepo := repository.NewRegistrationsRepository(db)
	cachedRepo := service.NewCachingRegistrationsRepo(registrationsRepo, cfg.DispatchCacheSize, cfg.DispatchCacheTTL)

	// Delivery pipeline: River worker POSTs signed payloads to callbacks
	sender := service.NewDeliverySenderImpl(cachedRepo)
	deliveryWorker := workers.NewWebhookDeliveryWorker(sender, webhookMetrics)

	riverClient, err := initRiver(ctx, db, cfg, deliveryWorker)
	if err != nil {
		slog.Error("Failed to initialize River job queue", "error", err)
		os.Exit(1)
	}
	slog.Info("River job queue started",
		"workers", cfg.DeliveryMaxWorkers,
		"max_attempts", cfg.DeliveryMaxAttempts,
	)

	// Services
	subscriptionService := service.NewSubscriptionService(cachedRepo, systems, cfg.ChallengeTimeout, webhookMetrics)
	registrationsService := service.NewRegistrationsService(cachedRepo, systems)
	dispatchService := service.NewDispatchService(
		cachedRepo, systems, riverClient,
		permissions.FilterRecord, cfg.DeliveryMaxAttempts, webhookMetrics,
	)

	// Handlers
	subscriptionsHandler := handlers.NewSubscriptionsHandler(subscriptionService)
	registrationsHandler := handlers.NewRegistrationsHandler(registrationsService)
	triggerHandler := handlers.NewTriggerHandler(dispatchService)
	healthHandler := handlers.NewHealthHandler()

	handler := api.NewRouter(api.RouterConfig{
		Subscriptions:  subscriptionsHandler,
		Registrations:  registrationsHandler,
		Trigger:        triggerHandler,
		Health:         healthHandler,
		MetricsHandler: metricsHandler,
		HTTPMetrics:    httpMetrics,
		AuthPublicKey:  cfg.AuthPublicKey,
		MaxBodyBytes:   cfg.MaxRequestBodyBytes,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// 2. Stop River (waits for in-flight deliveries to complete)
	slog.Info("Stopping River job queue...")
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River forced to shutdown", "error", err)
	}
	slog.Info("River job queue stopped")

	slog.Info("Server exited")
}

// setupLogging configures slog with the specified log level. Records carry
// request and trace context via the observability handler.
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	inner := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(observability.NewContextHandler(inner)))
}

// migrateRiver applies the queue's own schema migrations.
func migrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return err
	}

	_, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)

	return err
}

// initRiver initializes the River job queue client and starts the delivery
// worker pool.
func initRiver(
	ctx context.Context,
	db *pgxpool.Pool,
	cfg *config.Config,
	deliveryWorker *workers.WebhookDeliveryWorker,
) (*river.Client[pgx.Tx], error) {
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, deliveryWorker)

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.DeliveryMaxWorkers},
		},
		Workers:     riverWorkers,
		MaxAttempts: cfg.DeliveryMaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	// Start River (begins processing delivery jobs)
	if err := riverClient.Start(ctx); err != nil {
		return nil, err
	}

	return riverClient, nil
}
