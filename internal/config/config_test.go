package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gateway-api", cfg.ServiceName)
	assert.Equal(t, 600, cfg.SurfaceRateLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gateway")
	t.Setenv("HTTP_LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SURFACE_RATE_LIMIT", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/gateway", cfg.DatabaseURL)
	assert.Equal(t, ":9000", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 120, cfg.SurfaceRateLimit)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("SURFACE_RATE_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.SurfaceRateLimit)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/gateway"
	assert.ErrorContains(t, cfg.Validate(), "IDENTITY_SERVICE_URL")

	cfg.IdentityServiceURL = "http://identity.internal"
	assert.ErrorContains(t, cfg.Validate(), "RECORD_SERVICE_URL")

	cfg.RecordServiceURL = "http://records.internal"
	assert.NoError(t, cfg.Validate())
}
