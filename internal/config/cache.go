package config

import "time"

// CacheConfig holds statistics cache configuration
type CacheConfig struct {
	Enabled bool

	// TTL for aggregated queue/trend/agent statistics. Stats over historical
	// CDR data tolerate short staleness.
	StatsTTL time.Duration

	// TTL for reconstructed call chains. Chains for a finished call never
	// change, so this can be long.
	ChainTTL time.Duration
}

// DefaultCacheConfig holds the default cache configuration values
var DefaultCacheConfig = CacheConfig{
	Enabled:  true,
	StatsTTL: 5 * time.Minute,
	ChainTTL: 1 * time.Hour,
}

// LoadCacheConfig loads cache configuration from environment variables
func LoadCacheConfig() CacheConfig {
	cfg := DefaultCacheConfig

	if v := getEnvOrDefault("STATS_CACHE_ENABLED", ""); v == "false" || v == "0" {
		cfg.Enabled = false
	}
	if secs := getEnvIntOrDefault("STATS_CACHE_TTL_SECONDS", 0); secs > 0 {
		cfg.StatsTTL = time.Duration(secs) * time.Second
	}
	if secs := getEnvIntOrDefault("CHAIN_CACHE_TTL_SECONDS", 0); secs > 0 {
		cfg.ChainTTL = time.Duration(secs) * time.Second
	}

	return cfg
}
