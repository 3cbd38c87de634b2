package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Env            string
	ServerPort     string
	AllowedOrigins []string

	// Maximum number of rows a single export may produce.
	ExportMaxRows int

	// HTTP server timeouts.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

var (
	// DefaultConfig holds the default configuration values
	DefaultConfig = Config{
		Env:            "development",
		ServerPort:     "8080",
		AllowedOrigins: []string{"*"},
		ExportMaxRows:  50000,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
	}

	// AppConfig holds the current configuration
	AppConfig Config
)

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Note: .env file is loaded in main.go for local development using godotenv.Load()
	cfg := DefaultConfig

	cfg.Env = getEnvOrDefault("APP_ENV", cfg.Env)
	cfg.ServerPort = getEnvOrDefault("SERVER_PORT", cfg.ServerPort)
	cfg.ExportMaxRows = getEnvIntOrDefault("EXPORT_MAX_ROWS", cfg.ExportMaxRows)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		cfg.AllowedOrigins = nil
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	AppConfig = cfg
	return cfg
}

// GetConfig returns the current configuration
func GetConfig() Config {
	return AppConfig
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault gets environment variable as int or returns default value
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
