// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server, match and wave settings.
//
// IMPORTANT: When changing values, only modify this package.
// All other parts of the codebase should reference these values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string // nil means the router defaults
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

// =============================================================================
// MATCH RESOURCE LIMITS
// =============================================================================

// MatchLimits controls DoS protection for concurrently running matches.
type MatchLimits struct {
	MaxMatches     int // Hard cap on concurrently running matches
	MaxQueuedSpawn int // Cap on spawns waiting to be released in one match
}

// DefaultLimits returns the default match limits.
func DefaultLimits() MatchLimits {
	return MatchLimits{
		MaxMatches:     50,
		MaxQueuedSpawn: 500,
	}
}

// LimitsFromEnv returns match limits with environment variable overrides.
func LimitsFromEnv() MatchLimits {
	cfg := DefaultLimits()

	if m := getEnvInt("MAX_MATCHES", 0); m > 0 {
		cfg.MaxMatches = m
	}

	return cfg
}

// =============================================================================
// REQUEST RATE LIMITS
// =============================================================================

// RequestLimits bounds HTTP request rates per client IP.
// Every request draws from the general bucket; match creation and wave
// sampling also draw from the tighter expensive bucket.
type RequestLimits struct {
	RequestsPerSecond  float64
	Burst              int
	ExpensivePerSecond float64
	ExpensiveBurst     int
}

// DefaultRequestLimits returns the default request limits.
func DefaultRequestLimits() RequestLimits {
	return RequestLimits{
		RequestsPerSecond:  10,
		Burst:              20,
		ExpensivePerSecond: 0.5, // one new match or sample every 2s
		ExpensiveBurst:     5,
	}
}

// RequestLimitsFromEnv returns request limits with environment variable overrides.
func RequestLimitsFromEnv() RequestLimits {
	cfg := DefaultRequestLimits()

	if v := getEnvFloat("RATE_LIMIT_RPS", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := getEnvInt("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.Burst = v
	}
	if v := getEnvFloat("RATE_LIMIT_EXPENSIVE_RPS", 0); v > 0 {
		cfg.ExpensivePerSecond = v
	}
	if v := getEnvInt("RATE_LIMIT_EXPENSIVE_BURST", 0); v > 0 {
		cfg.ExpensiveBurst = v
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server   ServerConfig
	Limits   MatchLimits
	Requests RequestLimits
	Waves    WaveTuning
}

// Load returns the complete configuration.
// Wave tuning is read from WAVE_TUNING_FILE when set, then environment
// variables are applied on top.
func Load() (AppConfig, error) {
	waves := DefaultWaveTuning()
	if path := os.Getenv("WAVE_TUNING_FILE"); path != "" {
		loaded, err := LoadWaveTuning(path)
		if err != nil {
			return AppConfig{}, err
		}
		waves = *loaded
	}
	waves = applyWaveEnv(waves)
	if err := waves.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid wave tuning from environment: %w", err)
	}

	return AppConfig{
		Server:   ServerFromEnv(),
		Limits:   LimitsFromEnv(),
		Requests: RequestLimitsFromEnv(),
		Waves:    waves,
	}, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
