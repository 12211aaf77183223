package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cofre/internal/amqp"
	"cofre/internal/budget"
	"cofre/internal/config"
	"cofre/internal/db"
	"cofre/internal/log"
	"cofre/internal/rollover"
	"cofre/internal/settings"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting rollover-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Open the storage backend chosen by configuration. The adapter is the
	// only database handle in the process; everything receives it by
	// reference.
	adapter, err := db.Open(cfg.BackendConfig(), logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer adapter.Close()

	// AMQP is optional; without it rollovers simply don't publish events.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - rollover events will be published")
		}
	} else {
		logger.Info("AMQP disabled - rollover events will not be published")
	}

	repo := budget.NewRepository(adapter)
	marks := budget.NewWatermarkStore(settings.NewStore(adapter))
	builder := budget.NewSnapshotBuilder(repo)
	scheduler := rollover.New(adapter, repo, marks, builder, amqpClient, cfg.RolloverInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Budget rollover scheduler configured",
		"interval", cfg.RolloverInterval,
		"backend", cfg.DataBackend)

	stop := scheduler.Start(ctx)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	logger.Info("Shutting down rollover-worker...")
	stop()
	logger.Info("Rollover-worker shutdown complete")
}
