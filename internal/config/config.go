// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/internal/cacheinfra"
)

// EnvPrefix prefixes every variable, e.g. DEBT_SUMMARY_SYSTEM_TTL.
const EnvPrefix = "DEBT_SUMMARY"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the configuration for the summary service.
type Config struct {
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:""`

	CacheBackend        string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheCodec          string        `envconfig:"CACHE_CODEC" default:"json"`
	CacheNamespace      string        `envconfig:"CACHE_NAMESPACE" default:"summary"`
	CacheOpTimeout      time.Duration `envconfig:"CACHE_OP_TIMEOUT" default:"250ms"`
	CacheCapacity       int           `envconfig:"CACHE_CAPACITY" default:"100000"`
	RedisAddr           string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword       string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB             int           `envconfig:"REDIS_DB" default:"0"`
	BreakerEnabled      bool          `envconfig:"BREAKER_ENABLED" default:"true"`
	BreakerFailures     uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerOpenDuration time.Duration `envconfig:"BREAKER_OPEN_DURATION" default:"30s"`

	// Summary lifetimes. Direct computations are the least trusted, the
	// system summary is refreshed only by the batch.
	SystemTTL time.Duration `envconfig:"SYSTEM_TTL" default:"6h"`
	UserTTL   time.Duration `envconfig:"USER_TTL" default:"3h"`
	DirectTTL time.Duration `envconfig:"DIRECT_TTL" default:"1h"`

	BatchInterval      time.Duration `envconfig:"BATCH_INTERVAL" default:"30m"`
	BatchRunOnStart    bool          `envconfig:"BATCH_RUN_ON_START" default:"true"`
	BatchFanOutTimeout time.Duration `envconfig:"BATCH_FANOUT_TIMEOUT" default:"2m"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9464"`
}

// New creates a Config by parsing DEBT_SUMMARY_* environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting returns a valid configuration for tests: in-memory cache and
// sqlite, no breaker, no start-up pass.
func NewForTesting() *Config {
	return &Config{
		DBDriver:            DriverSQLite,
		DatabaseDSN:         ":memory:",
		CacheBackend:        cacheinfra.BackendMemory,
		CacheCodec:          "json",
		CacheNamespace:      cache.DefaultKeyNamespace,
		CacheOpTimeout:      time.Second,
		CacheCapacity:       1000,
		RedisAddr:           "localhost:6379",
		BreakerEnabled:      false,
		BreakerFailures:     5,
		BreakerOpenDuration: 30 * time.Second,
		SystemTTL:           6 * time.Hour,
		UserTTL:             3 * time.Hour,
		DirectTTL:           time.Hour,
		BatchInterval:       30 * time.Minute,
		BatchRunOnStart:     false,
		BatchFanOutTimeout:  time.Minute,
		LogLevel:            "debug",
		LogFormat:           "json",
		MetricsAddr:         "",
	}
}

// Validate checks field ranges and the TTL ordering
// DirectTTL <= UserTTL < SystemTTL.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return &cacheinfra.ConfigError{Field: "DBDriver", Message: "must be one of postgres, sqlite"}
	}

	for _, ttl := range []struct {
		field string
		value time.Duration
	}{
		{"SystemTTL", c.SystemTTL},
		{"UserTTL", c.UserTTL},
		{"DirectTTL", c.DirectTTL},
		{"BatchInterval", c.BatchInterval},
		{"BatchFanOutTimeout", c.BatchFanOutTimeout},
	} {
		if ttl.value <= 0 {
			return &cacheinfra.ConfigError{Field: ttl.field, Message: "must be greater than 0"}
		}
	}

	if c.DirectTTL > c.UserTTL {
		return &cacheinfra.ConfigError{Field: "DirectTTL", Message: "must not exceed UserTTL"}
	}
	if c.UserTTL >= c.SystemTTL {
		return &cacheinfra.ConfigError{Field: "UserTTL", Message: "must be less than SystemTTL"}
	}

	return c.Cache().Validate()
}

// Cache maps the flat environment settings onto the cache configuration.
func (c *Config) Cache() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Backend = c.CacheBackend
	cfg.Codec = c.CacheCodec
	cfg.OpTimeout = c.CacheOpTimeout
	cfg.Capacity = c.CacheCapacity
	cfg.Redis.Addr = c.RedisAddr
	cfg.Redis.Password = c.RedisPassword
	cfg.Redis.DB = c.RedisDB

	if !c.BreakerEnabled {
		cfg.Breaker = nil
	} else if cfg.Breaker != nil {
		cfg.Breaker.ConsecutiveFailures = c.BreakerFailures
		cfg.Breaker.Timeout = c.BreakerOpenDuration
	}
	return cfg
}
