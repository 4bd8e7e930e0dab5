package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/middleware"
	natsqueue "github.com/paystream-labs/paystream/common/queue/nats"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/common/vault"
	"github.com/paystream-labs/paystream/webhook/internal/config"
	"github.com/paystream-labs/paystream/webhook/internal/handlers"
	"github.com/paystream-labs/paystream/webhook/internal/ratelimit"
	"github.com/paystream-labs/paystream/webhook/internal/server"
	"github.com/paystream-labs/paystream/webhook/internal/service"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	migrationsPath := flag.String("migrations", "file://migrations", "path to database migrations")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("webhook"))
	logging.SetDefault(logger)

	slog.Info("Starting webhook service",
		slog.Int("port", cfg.Server.Port),
		slog.String("environment", cfg.Ingestion.Environment),
		slog.Any("providers", cfg.Ingestion.Providers),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Run database migrations
	if err := runMigrations(*migrationsPath, cfg.Postgres.ConnString()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize credential vault
	codec, err := vault.New(cfg.Vault.MasterKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	// Initialize postgres store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer st.Close()

	// Initialize NATS JetStream job queue
	natsClient, err := natsqueue.NewClient(natsqueue.Config{
		URL:           cfg.NATS.URL,
		Name:          "paystream-webhook",
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	jobs, err := natsqueue.NewJetStreamQueue(ctx, natsClient,
		natsqueue.JobsStream,
		natsqueue.DefaultConsumerConfig("webhook-workers"),
	)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize JetStream queue: %v", err)
	}

	// Initialize rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
			false,
		)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis rate limiter: %v", err)
			log.Println("Continuing without rate limiting")
			rateLimiter = &ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			log.Printf("Rate limiting enabled: %d requests per %s", cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
		log.Println("Rate limiting disabled")
	}
	defer rateLimiter.Close()

	// Initialize ingestion service
	registry := verifier.DefaultRegistry()
	ingestService, err := service.NewIngestService(service.Config{
		Providers:        cfg.Ingestion.Providers,
		Environment:      cfg.Ingestion.Environment,
		SkipVerification: cfg.Ingestion.SkipVerification,
	}, registry, codec, st, jobs, logger)
	if err != nil {
		log.Fatalf("Failed to initialize ingestion service: %v", err)
	}

	// Initialize HTTP surface
	auth := middleware.NewAdminAuth(cfg.Admin.TokenSecret)
	webhookHandler := handlers.NewWebhookHandler(ingestService, registry, rateLimiter, logger)
	adminHandler := handlers.NewAdminHandler(ingestService, logger)
	router := server.NewRouter(webhookHandler, adminHandler, auth)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Webhook service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func runMigrations(sourceURL, connString string) error {
	m, err := migrate.New(sourceURL, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
