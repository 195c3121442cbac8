package summarycache

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/internal/metrics"
)

// TTLs are the lifetimes of the cache entries.
type TTLs struct {
	// System applies to summary:system, written only by the batch.
	System time.Duration
	// User applies to per-user entries written by the batch or copied from the system entry.
	User time.Duration
	// Direct applies to per-user entries computed on the read path.
	Direct time.Duration
}

// DefaultTTLs returns 6h / 3h / 1h.
func DefaultTTLs() TTLs {
	return TTLs{
		System: 6 * time.Hour,
		User:   3 * time.Hour,
		Direct: time.Hour,
	}
}

type options struct {
	clock      clockwork.Clock
	logger     zerolog.Logger
	metrics    *metrics.Collector
	keys       cache.KeySerializer
	ttls       TTLs
	generation *Generation
}

// Option configures a Service or an Invalidator.
type Option func(*options)

// WithClock sets the clock summaries are stamped with.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger soft failures are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithKeySerializer overrides the default key layout.
func WithKeySerializer(k cache.KeySerializer) Option {
	return func(o *options) { o.keys = k }
}

// WithTTLs overrides DefaultTTLs.
func WithTTLs(t TTLs) Option {
	return func(o *options) { o.ttls = t }
}

// WithGeneration shares a generation between the writers and the invalidator.
func WithGeneration(g *Generation) Option {
	return func(o *options) { o.generation = g }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
		keys:   cache.NewDefaultKeySerializer(),
		ttls:   DefaultTTLs(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.generation == nil {
		o.generation = &Generation{}
	}
	return o
}
