package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL        string
	HTTPListenAddr     string
	LogLevel           string
	ServiceName        string
	IdentityServiceURL string
	RecordServiceURL   string
	RecordServiceKey   string
	// SurfaceRateLimit is the coarse per-key requests-per-minute throttle
	// applied in front of the per-key hourly ceilings.
	SurfaceRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8090"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServiceName:        getEnv("SERVICE_NAME", "gateway-api"),
		IdentityServiceURL: getEnv("IDENTITY_SERVICE_URL", ""),
		RecordServiceURL:   getEnv("RECORD_SERVICE_URL", ""),
		RecordServiceKey:   getEnv("RECORD_SERVICE_KEY", ""),
		SurfaceRateLimit:   getEnvInt("SURFACE_RATE_LIMIT", 600),
	}

	return cfg, nil
}

// Validate checks that everything the API server needs is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IdentityServiceURL == "" {
		return fmt.Errorf("IDENTITY_SERVICE_URL is required")
	}
	if c.RecordServiceURL == "" {
		return fmt.Errorf("RECORD_SERVICE_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
