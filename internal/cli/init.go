// Package cli holds the startup helpers shared by the server, the worker and crctl, plus the
// crctl maintenance commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"crnumbers/internal/amqp"
	"crnumbers/internal/config"
	applog "crnumbers/internal/log"
	"crnumbers/internal/notify"
	"crnumbers/internal/storage"
	"crnumbers/internal/storage/memory"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and sets it as the
// slog default.
func SetupLogger(level, format string, out io.Writer) *applog.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: applog.ComponentApp,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Stores bundles the staging and report stores of one backend.
type Stores struct {
	Staging storage.StagingStore
	Reports storage.ReportStore
	DB      storage.Pinger
	close   func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// InitStores opens the configured data backend.
func InitStores(cfg *config.Config, logger *applog.Logger) (*Stores, error) {
	switch cfg.DataBackend {
	case "memory":
		store := memory.New()
		logger.Warn("Using in-memory backend, data is lost on restart")
		return &Stores{Staging: store, Reports: store, DB: store, close: store.Close}, nil
	case "sqlite", "":
		repo, err := storage.NewSQLiteRepository(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite at %s: %w", cfg.DatabasePath, err)
		}
		logger.Info("SQLite repository initialized", "path", cfg.DatabasePath)
		return &Stores{Staging: repo, Reports: repo, DB: repo, close: repo.Close}, nil
	}
	return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
}

// NewNotifier returns the SMTP notifier, or a logging no-op when e-mail is not configured.
func NewNotifier(cfg *config.Config, logger *applog.Logger) (notify.Notifier, error) {
	if !cfg.EmailEnabled() {
		logger.Warn("E-mail disabled - no EMAIL_* settings provided")
		return notify.Disabled{Logger: logger.WithComponent(applog.ComponentNotify)}, nil
	}
	from, err := mail.ParseAddress(cfg.EmailFrom)
	if err != nil {
		return nil, fmt.Errorf("parse EMAIL_FROM: %w", err)
	}
	from.Name = notify.SenderName
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUsername,
		APIKey:   cfg.EmailAPIKey,
	})
	logger.Info("E-mail notifications enabled", "smtp_host", cfg.SMTPHost, "recipients", len(cfg.EmailTo))
	return notify.NewEmailNotifier(mailer, *from, cfg.EmailTo, logger), nil
}

// NewAMQPClient connects to the cleanup queue. It returns nil when AMQP is not configured.
func NewAMQPClient(cfg *config.Config, logger *applog.Logger) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
