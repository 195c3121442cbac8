package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the configuration for the summary store backends.
type Config struct {
	// Backend selects the store implementation: "memory" or "redis".
	Backend string

	// Capacity defines the maximum number of entries per in-memory TTL tier.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards per in-memory TTL tier.
	// Must be greater than 0. Default: 64
	NumShards int

	// EvictionPercentage specifies what percentage of entries to evict
	// when a tier reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often tiers sweep expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration

	// Redis configures the redis backend. Ignored for the memory backend.
	Redis RedisConfig

	// Breaker wraps the backend in a circuit breaker when non-nil.
	Breaker *BreakerConfig
}

// RedisConfig holds the connection settings for the redis backend.
type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// BreakerConfig mirrors the gobreaker settings used around the backend.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval is the closed-state window after which counts reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker once reached.
	ConsecutiveFailures uint32
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		Capacity:           100000,
		NumShards:          64,
		EvictionPercentage: 10,
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 2 * time.Second,
		},
		Breaker: &BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
}

// ToSturdycOptions converts the Config to sturdyc options shared by every tier.
// Capacity, NumShards and EvictionPercentage are passed to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
// Returns an error if any configuration parameter is invalid.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		if c.Capacity <= 0 {
			return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
		}
		if c.NumShards <= 0 {
			return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
		}
		if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
			return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
		}
		if c.EvictionInterval < 0 {
			return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return &ConfigError{Field: "Redis.Addr", Message: "must not be empty"}
		}
		if c.Redis.DB < 0 {
			return &ConfigError{Field: "Redis.DB", Message: "must be non-negative"}
		}
	default:
		return &ConfigError{Field: "Backend", Message: "must be one of memory, redis"}
	}

	if c.Breaker != nil {
		if c.Breaker.ConsecutiveFailures == 0 {
			return &ConfigError{Field: "Breaker.ConsecutiveFailures", Message: "must be greater than 0"}
		}
		if c.Breaker.Timeout < 0 {
			return &ConfigError{Field: "Breaker.Timeout", Message: "must be non-negative"}
		}
		if c.Breaker.Interval < 0 {
			return &ConfigError{Field: "Breaker.Interval", Message: "must be non-negative"}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
