package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"crnumbers/internal/cache"
	"crnumbers/internal/cli"
	"crnumbers/internal/core"
	apphttp "crnumbers/internal/http"
	applog "crnumbers/internal/log"
	"crnumbers/internal/middleware/ratelimit"
	"crnumbers/internal/services"
	"crnumbers/internal/validation"
	"crnumbers/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	stores, err := cli.InitStores(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer stores.Close()

	notifier, err := cli.NewNotifier(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize e-mail notifier", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	statsCache := cache.NewLRUCache[core.Stats](32, cfg.StatsCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(ctx, time.Minute)
	defer cacheManager.Stop()

	reportService := services.NewReportService(stores.Reports, statsCache, logger)
	opts := []services.ReconciliationOption{services.WithStatsInvalidator(reportService)}

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		opts = append(opts, services.WithCleanupScheduler(amqpClient))
	} else {
		// Without a queue nobody else retries failed cleanups, so sweep in-process.
		maintenance := services.NewMaintenanceService(stores.Reports, stores.Staging, reportService, logger)
		go worker.NewCleanupWorker(maintenance, logger).Run(ctx, cfg.CleanupInterval)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:        net.JoinHostPort("", cfg.Port),
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: ratelimit.Config{
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
	}, apphttp.Dependencies{
		Staging:   services.NewStagingService(stores.Staging, logger),
		Finalizer: services.NewReconciliationService(stores.Reports, stores.Staging, notifier, logger, opts...),
		Reports:   reportService,
		DB:        stores.DB,
		Validator: validation.New(),
		Logger:    logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	}()

	logger.Info("Starting crnumbers server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
