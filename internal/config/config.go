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
	DataDir string // Base directory for all databases, always absolute

	// HTTP server
	Port     int
	LogLevel string
	DevMode  bool

	// Trading network transport
	TransportAPIURL   string // REST command endpoint (accept/decline/send)
	TransportWSURL    string // websocket notification stream
	TransportAPIKey   string
	TransportTimeout  time.Duration
	BotExternalID     string // the bot's own platform account id
	EscrowDeclineDays int    // decline incoming offers that would sit in escrow longer

	// Pricing
	PriceAPIURL      string
	PriceCacheTTL    time.Duration
	PriceCacheSize   int
	RubUsdDivisor    float64 // upstream returns RUB; divide to normalize to USD
	CommissionRate   float64
	PriceHTTPTimeout time.Duration

	// Reconciliation
	StalePendingAfter time.Duration // pending transactions older than this raise an alert

	// Backups (S3-compatible bucket; disabled when bucket is empty)
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string
	BackupKeep      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRADEBOT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8001),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		TransportAPIURL:   getEnv("TRANSPORT_API_URL", "https://api.steampowered.com"),
		TransportWSURL:    getEnv("TRANSPORT_WS_URL", ""),
		TransportAPIKey:   getEnv("TRANSPORT_API_KEY", ""),
		TransportTimeout:  getEnvAsDuration("TRANSPORT_TIMEOUT", 15*time.Second),
		BotExternalID:     getEnv("BOT_EXTERNAL_ID", ""),
		EscrowDeclineDays: getEnvAsInt("ESCROW_DECLINE_DAYS", 0),

		PriceAPIURL:      getEnv("PRICE_API_URL", "https://steamcommunity.com/market/priceoverview"),
		PriceCacheTTL:    getEnvAsDuration("PRICE_CACHE_TTL", time.Hour),
		PriceCacheSize:   getEnvAsInt("PRICE_CACHE_SIZE", 10000),
		RubUsdDivisor:    getEnvAsFloat("RUB_USD_DIVISOR", 90),
		CommissionRate:   getEnvAsFloat("COMMISSION_RATE", 0.03),
		PriceHTTPTimeout: getEnvAsDuration("PRICE_HTTP_TIMEOUT", 10*time.Second),

		StalePendingAfter: getEnvAsDuration("STALE_PENDING_AFTER", 24*time.Hour),

		BackupBucket:    getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:  getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey: getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_SECRET_KEY", ""),
		BackupKeep:      getEnvAsInt("BACKUP_KEEP", 7),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("commission rate must be in [0, 1), got %f", c.CommissionRate)
	}
	if c.RubUsdDivisor <= 0 {
		return fmt.Errorf("rub/usd divisor must be positive, got %f", c.RubUsdDivisor)
	}
	if c.PriceCacheSize <= 0 {
		return fmt.Errorf("price cache size must be positive, got %d", c.PriceCacheSize)
	}
	// Transport credentials are optional: without them the engine runs in
	// a receive-only mode useful for local development.
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
