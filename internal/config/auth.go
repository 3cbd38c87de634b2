package config

import (
	"time"

	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"go.uber.org/zap"
)

// AuthConfig holds JWT and login throttling configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration

	// Login attempts allowed per second per client, with burst.
	LoginRatePerSecond float64
	LoginBurst         int
}

// DefaultAuthConfig holds the default auth configuration values
var DefaultAuthConfig = AuthConfig{
	TokenTTL:           8 * time.Hour,
	LoginRatePerSecond: 1,
	LoginBurst:         5,
}

// LoadAuthConfig loads auth configuration from environment variables
func LoadAuthConfig() AuthConfig {
	cfg := DefaultAuthConfig

	cfg.JWTSecret = getEnvOrDefault("JWT_SECRET", "")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-secret"
		logger.Base().Warn("JWT_SECRET not set, using insecure development secret",
			zap.String("env_var", "JWT_SECRET"))
	}

	if hours := getEnvIntOrDefault("JWT_TOKEN_TTL_HOURS", 0); hours > 0 {
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}
	if burst := getEnvIntOrDefault("LOGIN_RATE_BURST", 0); burst > 0 {
		cfg.LoginBurst = burst
	}

	return cfg
}
