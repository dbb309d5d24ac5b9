package main

import (
	"context"
	"errors"
	"os"

	"crnumbers/internal/cli"
	applog "crnumbers/internal/log"
	"crnumbers/internal/services"
	"crnumbers/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout)
	logger.Info("Starting crnumbers-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != "sqlite" {
		logger.Error("The worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	stores, err := cli.InitStores(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer stores.Close()

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	maintenance := services.NewMaintenanceService(stores.Reports, stores.Staging, nil, logger)
	cleanupWorker := worker.NewCleanupWorker(maintenance, logger)

	if amqpClient != nil {
		defer amqpClient.Close()
		go func() {
			if err := amqpClient.ConsumeCleanup(ctx, cleanupWorker.HandleCleanupMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption, relying on periodic sweeps")
	}

	logger.Info("Worker started", "cleanup_interval", cfg.CleanupInterval)
	cleanupWorker.Run(ctx, cfg.CleanupInterval)
	logger.Info("Worker stopped gracefully")
}
