package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxEmailRecipients = 50

var defaultCORSOrigins = []string{
	"https://cr-friday-night-frontend.onrender.com",
	"http://localhost:3000",
	"http://192.168.50.98:3000",
}

type Config struct {
	// HTTP Server
	Port        string
	CORSOrigins []string

	// Storage
	DataBackend  string
	DatabasePath string

	// E-mail
	SMTPHost      string
	SMTPPort      int
	EmailUsername string
	EmailAPIKey   string
	EmailFrom     string
	EmailTo       []string

	// Rate limiting on write routes
	RateLimitWindow time.Duration
	RateLimitMax    int

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	CleanupInterval time.Duration

	StatsCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "5002"),
		CORSOrigins: getEnvList("CORS_ORIGINS", defaultCORSOrigins),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/crnumbers.db"),

		SMTPHost:      getEnv("EMAIL_SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("EMAIL_SMTP_PORT", 587),
		EmailUsername: getEnv("EMAIL_USERNAME", ""),
		EmailAPIKey:   getEnv("EMAIL_API_KEY", ""),
		EmailFrom:     getEnv("EMAIL_FROM", ""),
		EmailTo:       getEnvList("EMAIL_TO", nil),

		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "crnumbers"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "staging_cleanup"),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", 10*time.Minute),
		StatsCacheTTL:   getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),
	}
}

// EmailEnabled reports whether any e-mail setting was provided. Validate rejects partial setups.
func (c *Config) EmailEnabled() bool {
	return c.EmailUsername != "" || c.EmailAPIKey != "" || c.EmailFrom != "" || len(c.EmailTo) > 0
}

// AMQPEnabled reports whether the cleanup queue is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.DatabasePath == "" {
			errors = append(errors, "database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.DatabasePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	for _, origin := range c.CORSOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid CORS origin '%s': must be an http(s) origin", origin))
		}
	}

	if c.EmailEnabled() {
		errors = append(errors, c.validateEmail()...)
	}

	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}
	if c.RateLimitMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit max %d: must be at least 1", c.RateLimitMax))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cleanup interval %v: must be at least 1 second", c.CleanupInterval))
	} else if c.CleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cleanup interval %v: must be at most 24 hours", c.CleanupInterval))
	}

	if c.StatsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must not be negative", c.StatsCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateEmail() []string {
	var errors []string
	if c.SMTPHost == "" {
		errors = append(errors, "EMAIL_SMTP_HOST is required when e-mail is configured")
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
	}
	if c.EmailUsername == "" {
		errors = append(errors, "EMAIL_USERNAME is required when e-mail is configured")
	}
	if c.EmailAPIKey == "" {
		errors = append(errors, "EMAIL_API_KEY is required when e-mail is configured")
	}
	if _, err := mail.ParseAddress(c.EmailFrom); err != nil {
		errors = append(errors, fmt.Sprintf("invalid EMAIL_FROM '%s': %v", c.EmailFrom, err))
	}
	switch n := len(c.EmailTo); {
	case n == 0:
		errors = append(errors, "EMAIL_TO needs at least one recipient when e-mail is configured")
	case n > maxEmailRecipients:
		errors = append(errors, fmt.Sprintf("EMAIL_TO has %d recipients: at most %d allowed", n, maxEmailRecipients))
	}
	for _, to := range c.EmailTo {
		if _, err := mail.ParseAddress(to); err != nil {
			errors = append(errors, fmt.Sprintf("invalid EMAIL_TO address '%s'", to))
		}
	}
	return errors
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
