package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/handlers"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/queue"
	"github.com/soltixdb/nelson/internal/router"
	"github.com/soltixdb/nelson/internal/services"
	"github.com/soltixdb/nelson/internal/worker"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	handlers.Version = Version
	logger.Info("Nelson service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Build the rules engine
	engine, err := services.NewEngine(cfg.Engine)
	if err != nil {
		logger.Fatal("Failed to create engine", "error", err)
	}
	evaluationService := services.NewEvaluationService(logger, engine, cfg.Engine)
	logger.Info("Evaluation service initialized",
		"estimator", cfg.Engine.StdDevEstimator,
		"workers", cfg.Engine.Workers,
		"max_series", cfg.Engine.MaxSeries)

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the queue worker when enabled
	var (
		queueClient      queue.Queue
		evaluationWorker *worker.EvaluationWorker
	)
	if cfg.Queue.Enabled {
		logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
		queueClient, err = queue.NewQueue(cfg.Queue)
		if err != nil {
			logger.Fatal("Failed to connect to Queue", "error", err)
		}
		logger.Info("Queue connection established")

		evaluationWorker, err = worker.New(logger, queueClient, evaluationService, cfg.Queue)
		if err != nil {
			logger.Fatal("Failed to create evaluation worker", "error", err)
		}
		if err := evaluationWorker.Start(ctx); err != nil {
			logger.Fatal("Failed to start evaluation worker", "error", err)
		}
	}

	// Initialize router
	app := router.New(logger, evaluationService, *cfg)

	// Start server in goroutine
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if evaluationWorker != nil {
		if err := evaluationWorker.Stop(); err != nil {
			logger.Warn("Failed to stop evaluation worker", "error", err)
		}
	}
	cancel()
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Warn("Failed to close queue", "error", err)
		}
	}

	logger.Info("Server exited")
}
