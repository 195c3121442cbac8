package di

import (
	"errors"
	"fmt"
	"io"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-debt-summary/batch"
	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/debt"
	"github.com/goliatone/go-debt-summary/internal/config"
	"github.com/goliatone/go-debt-summary/internal/metrics"
	"github.com/goliatone/go-debt-summary/repositorycache"
	"github.com/goliatone/go-debt-summary/store"
	"github.com/goliatone/go-debt-summary/summarycache"
)

// MetricsNamespace prefixes every metric the container registers.
const MetricsNamespace = "debt_summary"

// Container wires the summary subsystem from configuration. The read service,
// the invalidator and the batch aggregator share one cache layer, one key
// layout and one invalidation generation.
type Container struct {
	config  config.Config
	logger  zerolog.Logger
	clock   clockwork.Clock
	metrics *metrics.Collector

	db         *bun.DB
	ownsDB     bool
	store      store.Reader
	cacheStore cache.Store
	ownsCache  bool
	layer      *cache.Layer
	keys       cache.KeySerializer
	generation *summarycache.Generation

	service     *summarycache.Service
	invalidator *summarycache.Invalidator
	aggregator  *batch.Aggregator
}

// Option customizes a Container.
type Option func(*Container)

// WithLogger sets the logger handed to every component.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithClock sets the clock handed to the read service and the aggregator.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Container) { c.clock = clock }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Container) { c.metrics = m }
}

// WithDB uses db instead of opening one from the configuration.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithStore uses r as the debt source; no database is opened.
func WithStore(r store.Reader) Option {
	return func(c *Container) { c.store = r }
}

// WithCacheStore uses s as the cache backend instead of building one.
func WithCacheStore(s cache.Store) Option {
	return func(c *Container) { c.cacheStore = s }
}

// NewContainer validates cfg and builds every component.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("di: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config: *cfg,
		logger: zerolog.Nop(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewCollector(MetricsNamespace)
	}

	if err := c.initStore(); err != nil {
		return nil, err
	}
	if err := c.initCache(); err != nil {
		_ = c.Close()
		return nil, err
	}
	c.initComponents()
	return c, nil
}

// NewContainerWithDefaults builds a container from the environment.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return NewContainer(cfg, opts...)
}

func (c *Container) initStore() error {
	if c.store != nil {
		return nil
	}
	if c.db == nil {
		db, err := OpenDB(c.config.DBDriver, c.config.DatabaseDSN)
		if err != nil {
			return err
		}
		c.db = db
		c.ownsDB = true
	}
	c.store = store.NewBunStore(c.db)
	return nil
}

func (c *Container) initCache() error {
	cacheCfg := c.config.Cache()
	if c.cacheStore == nil {
		s, err := cache.NewStore(cacheCfg, cache.StoreOptions{OnBreakerStateChange: c.onBreakerStateChange})
		if err != nil {
			return fmt.Errorf("cache store: %w", err)
		}
		c.cacheStore = s
		c.ownsCache = true
	}

	codec, err := cache.CodecByName(cacheCfg.Codec)
	if err != nil {
		return err
	}
	c.layer = cache.NewLayer(c.cacheStore, codec, cacheCfg.OpTimeout)
	c.keys = cache.NewKeySerializer(c.config.CacheNamespace)
	c.generation = &summarycache.Generation{}
	return nil
}

func (c *Container) initComponents() {
	ttls := summarycache.TTLs{
		System: c.config.SystemTTL,
		User:   c.config.UserTTL,
		Direct: c.config.DirectTTL,
	}
	shared := []summarycache.Option{
		summarycache.WithClock(c.clock),
		summarycache.WithLogger(c.logger.With().Str("component", "summarycache").Logger()),
		summarycache.WithMetrics(c.metrics),
		summarycache.WithKeySerializer(c.keys),
		summarycache.WithTTLs(ttls),
		summarycache.WithGeneration(c.generation),
	}
	c.service = summarycache.NewService(c.store, c.layer, shared...)
	c.invalidator = summarycache.NewInvalidator(c.layer, c.store, shared...)

	bcfg := batch.DefaultConfig()
	bcfg.Interval = c.config.BatchInterval
	bcfg.RunOnStart = c.config.BatchRunOnStart
	bcfg.FanOutTimeout = c.config.BatchFanOutTimeout
	bcfg.TTLs = ttls
	c.aggregator = batch.New(c.store, c.layer, bcfg,
		batch.WithClock(c.clock),
		batch.WithLogger(c.logger.With().Str("component", "batch").Logger()),
		batch.WithMetrics(c.metrics),
		batch.WithKeySerializer(c.keys),
		batch.WithGeneration(c.generation),
	)
}

func (c *Container) onBreakerStateChange(name, from, to string) {
	c.metrics.BreakerTransition(to)
	c.logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("cache circuit breaker changed state")
}

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// Logger returns the root logger.
func (c *Container) Logger() zerolog.Logger {
	return c.logger
}

// Metrics returns the collector every component reports to.
func (c *Container) Metrics() *metrics.Collector {
	return c.metrics
}

// DB returns the database, or nil when the container was given a store.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Store returns the debt source.
func (c *Container) Store() store.Reader {
	return c.store
}

// Layer returns the shared cache layer.
func (c *Container) Layer() *cache.Layer {
	return c.layer
}

// KeySerializer returns the key layout shared by all components.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keys
}

// Service returns the read service.
func (c *Container) Service() *summarycache.Service {
	return c.service
}

// Invalidator returns the invalidator.
func (c *Container) Invalidator() *summarycache.Invalidator {
	return c.invalidator
}

// Aggregator returns the batch aggregator. It is not started.
func (c *Container) Aggregator() *batch.Aggregator {
	return c.aggregator
}

// NewDebtRepository wraps base so that its writes invalidate through the
// container's invalidator.
func (c *Container) NewDebtRepository(base repository.Repository[*debt.Debt]) *repositorycache.DebtRepository {
	return repositorycache.New(base, c.invalidator,
		repositorycache.WithLogger(c.logger.With().Str("component", "repositorycache").Logger()))
}

// Close releases the cache backend and the database the container opened itself.
func (c *Container) Close() error {
	var errs []error
	if closer, ok := c.cacheStore.(io.Closer); ok && c.ownsCache {
		errs = append(errs, closer.Close())
	}
	if c.ownsDB {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
