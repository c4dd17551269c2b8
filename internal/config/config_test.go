package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/jsredis/pkg/jsredis"
	"github.com/leafsii/jsredis/pkg/kv"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.False(t, cfg.Store.Failover)
	assert.Equal(t, 5*time.Second, cfg.Store.ProbeInterval)
	assert.Equal(t, 600, cfg.Security.RateLimitRPM)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Security.CORSAllowedOrigins)
	assert.IsType(t, jsredis.StdCodec{}, cfg.JSONCodec())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JSR_ENV", "PROD")
	t.Setenv("JSR_KV_BACKEND", "memory")
	t.Setenv("JSR_KV_FAILOVER", "true")
	t.Setenv("JSR_KV_JANITOR_INTERVAL", "15s")
	t.Setenv("JSR_CODEC", "goccy")
	t.Setenv("JSR_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.True(t, cfg.Store.Failover)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
	assert.IsType(t, jsredis.GoccyCodec{}, cfg.JSONCodec())

	kvCfg := cfg.KVConfig(nil)
	assert.Equal(t, kv.BackendMemory, kvCfg.Backend)
	assert.Equal(t, 15*time.Second, kvCfg.JanitorInterval)
	assert.True(t, kvCfg.FailoverEnabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"env", "JSR_ENV", "staging"},
		{"backend", "JSR_KV_BACKEND", "etcd"},
		{"codec", "JSR_CODEC", "xml"},
		{"probe interval", "JSR_KV_PROBE_INTERVAL", "0s"},
		{"rate limit", "JSR_RATE_LIMIT_RPM", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestRedisBackendRequiresURL(t *testing.T) {
	cfg := &Config{
		Env:            "dev",
		HTTPAddr:       ":8080",
		RequestTimeout: time.Second,
		Store:          StoreConfig{Backend: "redis", ProbeInterval: time.Second},
	}

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSR_REDIS_URL")
}
