package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paystream-labs/paystream/common/logging"
	natsqueue "github.com/paystream-labs/paystream/common/queue/nats"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/worker/internal/config"
	"github.com/paystream-labs/paystream/worker/internal/handlers"
	"github.com/paystream-labs/paystream/worker/internal/processor"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
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
	).With(logging.Service("worker"))
	logging.SetDefault(logger)

	slog.Info("Starting worker service",
		slog.Int("port", cfg.Server.Port),
		slog.Int("max_retries", cfg.Processing.MaxRetries),
		slog.String("consumer", cfg.Processing.ConsumerName),
	)

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
		Name:          "paystream-worker",
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
		natsqueue.DefaultConsumerConfig(cfg.Processing.ConsumerName),
	)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize JetStream queue: %v", err)
	}

	// Wire business handlers. Ledger and subscription book integrations are
	// log-backed until the downstream systems come online.
	registry := handlers.NewRegistry(handlers.NewLogHandler(logger))
	registry.Register(
		handlers.NewTransactionHandler(handlers.NewLogLedger(logger), logger),
		handlers.TransactionEventTypes...,
	)
	registry.Register(
		handlers.NewSubscriptionHandler(handlers.NewLogSubscriptionBook(logger), logger),
		handlers.SubscriptionEventTypes...,
	)

	// Start the processor
	proc := processor.New(processor.Config{
		MaxRetries:     cfg.Processing.MaxRetries,
		HandlerTimeout: cfg.Processing.HandlerTimeout,
		BackoffBase:    cfg.Processing.BackoffBase,
		BackoffCap:     cfg.Processing.BackoffCap,
	}, st, jobs, registry, logger)

	stopConsuming, err := proc.Start(context.Background())
	if err != nil {
		log.Fatalf("Failed to start processor: %v", err)
	}

	// Health and metrics endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy"}`)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !natsClient.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"nats disconnected"}`)
			return
		}
		fmt.Fprint(w, `{"status":"ready"}`)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Worker service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	stopConsuming()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Worker stopped")
}
