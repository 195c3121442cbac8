package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-debt-summary/internal/cacheinfra"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 6*time.Hour, cfg.SystemTTL)
	assert.Equal(t, 3*time.Hour, cfg.UserTTL)
	assert.Equal(t, time.Hour, cfg.DirectTTL)
	assert.Equal(t, 30*time.Minute, cfg.BatchInterval)
	assert.True(t, cfg.BatchRunOnStart)
	assert.Equal(t, 250*time.Millisecond, cfg.CacheOpTimeout)
	assert.Equal(t, "memory", cfg.CacheBackend)
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("DEBT_SUMMARY_DB_DRIVER", "sqlite")
	t.Setenv("DEBT_SUMMARY_CACHE_BACKEND", "redis")
	t.Setenv("DEBT_SUMMARY_REDIS_ADDR", "cache:6379")
	t.Setenv("DEBT_SUMMARY_CACHE_CODEC", "msgpack")
	t.Setenv("DEBT_SUMMARY_BATCH_INTERVAL", "5m")
	t.Setenv("DEBT_SUMMARY_BREAKER_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.BatchInterval)

	cc := cfg.Cache()
	assert.Equal(t, "redis", cc.Backend)
	assert.Equal(t, "cache:6379", cc.Redis.Addr)
	assert.Equal(t, "msgpack", cc.Codec)
	assert.Nil(t, cc.Breaker)
}

func TestNew_InvalidEnv(t *testing.T) {
	t.Setenv("DEBT_SUMMARY_SYSTEM_TTL", "not-a-duration")

	_, err := New()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "testing config", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "oracle" }, wantField: "DBDriver"},
		{name: "zero system ttl", mutate: func(c *Config) { c.SystemTTL = 0 }, wantField: "SystemTTL"},
		{name: "zero interval", mutate: func(c *Config) { c.BatchInterval = 0 }, wantField: "BatchInterval"},
		{name: "direct above user", mutate: func(c *Config) { c.DirectTTL = 4 * time.Hour }, wantField: "DirectTTL"},
		{name: "user equals system", mutate: func(c *Config) { c.UserTTL = 6 * time.Hour }, wantField: "UserTTL"},
		{name: "direct equals user", mutate: func(c *Config) { c.DirectTTL = 3 * time.Hour }},
		{name: "bad codec", mutate: func(c *Config) { c.CacheCodec = "yaml" }, wantField: "Codec"},
		{name: "bad backend", mutate: func(c *Config) { c.CacheBackend = "disk" }, wantField: "Backend"},
		{name: "breaker with zero failures", mutate: func(c *Config) { c.BreakerEnabled = true; c.BreakerFailures = 0 }, wantField: "Breaker.ConsecutiveFailures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewForTesting()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *cacheinfra.ConfigError
			require.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %v", err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}
