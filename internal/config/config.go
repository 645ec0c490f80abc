package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                int
	DevMode             bool
	DatabasePath        string
	HistoryPath         string
	AlphaVantageAPIKey  string
	AlphaVantageBaseURL string
	QuoteTTL            time.Duration
	QuoteRefreshCron    string
	JWTSecret           string
	LogLevel            string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 8000),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		DatabasePath:        getEnv("DATABASE_PATH", "./data/stockfolio.db"),
		HistoryPath:         getEnv("HISTORY_PATH", "./data/history.db"),
		AlphaVantageAPIKey:  getEnv("ALPHAVANTAGE_API_KEY", ""),
		AlphaVantageBaseURL: getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		QuoteTTL:            time.Duration(getEnvAsInt("QUOTE_TTL_MINUTES", 15)) * time.Minute,
		QuoteRefreshCron:    getEnv("QUOTE_REFRESH_CRON", "@every 15m"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.JWTSecret == "" {
		if !c.DevMode {
			return fmt.Errorf("JWT_SECRET is required outside dev mode")
		}
		c.JWTSecret = "dev-only-secret"
	}

	if c.AlphaVantageAPIKey == "" {
		return fmt.Errorf("ALPHAVANTAGE_API_KEY is required")
	}

	if c.QuoteTTL <= 0 {
		return fmt.Errorf("QUOTE_TTL_MINUTES must be positive")
	}

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
