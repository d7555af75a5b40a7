// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for the price database (always absolute)
	ProviderURL     string // OHLCV data provider base URL
	ProviderAPIKey  string
	ModelServiceURL string // Forecast model sidecar (recurrent/foundation models)
	SyncSchedule    string // Cron expression for the scheduled price sync
	LogLevel        string
	Port            int
	ForecastTimeout time.Duration // Per-model time box for compare/backtest runs
	DevMode         bool
	SyncEnabled     bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUANTFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("QUANTFOLIO_PORT", 8002),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		ProviderURL:     getEnv("PROVIDER_URL", "http://localhost:8100"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ModelServiceURL: getEnv("MODEL_SERVICE_URL", "http://localhost:9100"),
		SyncSchedule:    getEnv("SYNC_SCHEDULE", "0 18 * * 1-5"), // weekdays after close
		SyncEnabled:     getEnvAsBool("SYNC_ENABLED", true),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ForecastTimeout: time.Duration(getEnvAsInt("FORECAST_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	// Provider API key optional: some providers serve OHLCV without auth
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
