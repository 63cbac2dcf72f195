package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_BACKEND", "EVENT_BUS", "ROUND_TICK_INTERVAL", "ROUND_POLL_INTERVAL", "JWT_EXPIRE_HOURS", "CORS_ALLOWED_ORIGINS", "REDIS_DISABLED"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageMongo, cfg.Storage)
	assert.Equal(t, BusRedis, cfg.Bus)
	assert.Equal(t, time.Second, cfg.Round.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Round.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Memory")
	t.Setenv("EVENT_BUS", "local")
	t.Setenv("REDIS_ADDR", "redis://cache:6380")
	t.Setenv("ROUND_POLL_INTERVAL", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, BusLocal, cfg.Bus)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Round.PollInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown storage":     {"STORAGE_BACKEND": "sqlite"},
		"unknown bus":         {"EVENT_BUS": "kafka"},
		"redis bus disabled":  {"REDIS_DISABLED": "true"},
		"non-positive expiry": {"JWT_EXPIRE_HOURS": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
