package cacheinfra

import (
	"context"
	"time"
)

// ByteStore is the raw key/value contract every backend satisfies.
// It matches cache.Store so backends plug straight into a cache.Layer.
type ByteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Options carries optional hooks for NewStore.
type Options struct {
	OnBreakerStateChange StateChangeFunc
}

// NewStore validates cfg and builds the configured backend, wrapped in a
// circuit breaker when cfg.Breaker is set.
func NewStore(cfg Config, opts Options) (ByteStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store ByteStore
	switch cfg.Backend {
	case BackendRedis:
		store = NewRedisStore(NewRedisClient(cfg.Redis))
	default:
		tiered, err := NewTieredStore(cfg)
		if err != nil {
			return nil, err
		}
		store = tiered
	}

	if cfg.Breaker != nil {
		store = NewBreakerStore("summary-cache:"+cfg.Backend, store, *cfg.Breaker, opts.OnBreakerStateChange)
	}
	return store, nil
}
