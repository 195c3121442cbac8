package cache

import (
	"time"

	"github.com/goliatone/go-debt-summary/internal/cacheinfra"
	"github.com/sony/gobreaker"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            string
	Capacity           int
	NumShards          int
	EvictionPercentage int
	EvictionInterval   time.Duration
	Redis              RedisConfig
	Breaker            *BreakerConfig
	Codec              string
	OpTimeout          time.Duration
}

// RedisConfig mirrors the redis connection options.
type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// BreakerConfig mirrors the circuit breaker options applied around the backend.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Codec = JSONCodec{}.Name()
	cfg.OpTimeout = DefaultOpTimeout
	return cfg
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if _, err := CodecByName(c.Codec); err != nil {
		return &cacheinfra.ConfigError{Field: "Codec", Message: "must be one of json, msgpack"}
	}
	if c.OpTimeout < 0 {
		return &cacheinfra.ConfigError{Field: "OpTimeout", Message: "must be non-negative"}
	}
	return c.toInternal().Validate()
}

// StoreOptions carries optional hooks for NewStore.
type StoreOptions struct {
	// OnBreakerStateChange receives the breaker name and the from/to state names.
	OnBreakerStateChange func(name, from, to string)
}

// NewStore constructs the configured backend.
func NewStore(cfg Config, opts StoreOptions) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var internalOpts cacheinfra.Options
	if opts.OnBreakerStateChange != nil {
		internalOpts.OnBreakerStateChange = func(name string, from, to gobreaker.State) {
			opts.OnBreakerStateChange(name, from.String(), to.String())
		}
	}
	return cacheinfra.NewStore(cfg.toInternal(), internalOpts)
}

// New constructs the backend and the Layer on top of it.
func New(cfg Config, opts StoreOptions) (*Layer, error) {
	store, err := NewStore(cfg, opts)
	if err != nil {
		return nil, err
	}
	codec, _ := CodecByName(cfg.Codec)
	return NewLayer(store, codec, cfg.OpTimeout), nil
}

func (c Config) toInternal() cacheinfra.Config {
	var breaker *cacheinfra.BreakerConfig
	if c.Breaker != nil {
		breaker = &cacheinfra.BreakerConfig{
			MaxRequests:         c.Breaker.MaxRequests,
			Interval:            c.Breaker.Interval,
			Timeout:             c.Breaker.Timeout,
			ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
		}
	}

	return cacheinfra.Config{
		Backend:            c.Backend,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		Redis: cacheinfra.RedisConfig{
			Addr:        c.Redis.Addr,
			Username:    c.Redis.Username,
			Password:    c.Redis.Password,
			DB:          c.Redis.DB,
			DialTimeout: c.Redis.DialTimeout,
		},
		Breaker: breaker,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var breaker *BreakerConfig
	if cfg.Breaker != nil {
		breaker = &BreakerConfig{
			MaxRequests:         cfg.Breaker.MaxRequests,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		}
	}

	return Config{
		Backend:            cfg.Backend,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		Redis: RedisConfig{
			Addr:        cfg.Redis.Addr,
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		},
		Breaker: breaker,
	}
}
