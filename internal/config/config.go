package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stock-reservation-engine/internal/utils"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	LogLevel    string
	Environment string

	// StorageBackend selects "memory" (JSON file persistence) or "mysql".
	StorageBackend        string
	DataDir               string
	MySQLDSN              string
	EnableJSONPersistence string

	// IdempotencyBackend selects "memory" or "redis".
	IdempotencyBackend         string
	RedisAddr                  string
	IdempotencyTTL             string
	IdempotencyCleanupInterval string
}

// LoadConfig loads configuration from a .env file and the environment.
func LoadConfig() *Config {
	// Existing environment variables are not overridden.
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	config := &Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),

		StorageBackend:        getEnvWithDefault("STORAGE_BACKEND", "memory"),
		DataDir:               getEnvWithDefault("DATA_DIR", "data"),
		MySQLDSN:              getEnvWithDefault("MYSQL_DSN", ""),
		EnableJSONPersistence: getEnvWithDefault("ENABLE_JSON_PERSISTENCE", "true"),

		IdempotencyBackend:         getEnvWithDefault("IDEMPOTENCY_BACKEND", "memory"),
		RedisAddr:                  getEnvWithDefault("REDIS_ADDR", "localhost:6379"),
		IdempotencyTTL:             getEnvWithDefault("IDEMPOTENCY_TTL", "2m"),
		IdempotencyCleanupInterval: getEnvWithDefault("IDEMPOTENCY_CLEANUP_INTERVAL", "30s"),
	}

	utils.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"storageBackend", config.StorageBackend,
		"dataDir", config.DataDir,
		"idempotencyBackend", config.IdempotencyBackend,
		"idempotencyTTL", config.IdempotencyTTL,
		"enableJSONPersistence", config.EnableJSONPersistence)

	return config
}

// IdempotencyDurations parses the TTL settings, falling back to safe
// defaults on invalid input.
func (c *Config) IdempotencyDurations() (ttl, cleanup time.Duration) {
	ttl, err := time.ParseDuration(c.IdempotencyTTL)
	if err != nil {
		slog.Warn("Invalid idempotency TTL, using default", "provided", c.IdempotencyTTL, "error", err)
		ttl = 2 * time.Minute
	}
	cleanup, err = time.ParseDuration(c.IdempotencyCleanupInterval)
	if err != nil {
		slog.Warn("Invalid cleanup interval, using default", "provided", c.IdempotencyCleanupInterval, "error", err)
		cleanup = 30 * time.Second
	}
	return ttl, cleanup
}

// getEnvWithDefault gets an environment variable with a default fallback.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
