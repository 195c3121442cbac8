// Package metrics exposes prometheus counters for the summary subsystem.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup tiers.
const (
	TierUser   = "user"
	TierSystem = "system"
)

// Batch pass results.
const (
	PassCompleted = "completed"
	PassFailed    = "failed"
	PassSkipped   = "skipped"
)

// Collector holds the Prometheus metrics of the subsystem.
// All methods are safe on a nil *Collector and do nothing.
type Collector struct {
	registry *prometheus.Registry

	CacheLookups   *prometheus.CounterVec
	SoftFailures   *prometheus.CounterVec
	DirectComputes *prometheus.CounterVec
	Invalidations  prometheus.Counter
	BatchPasses    *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	BatchUsers     prometheus.Gauge
	BreakerChanges *prometheus.CounterVec
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Summary cache lookups by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	softFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_soft_failures_total",
			Help:      "Cache operations that failed and were degraded to a miss",
		},
		[]string{"op"},
	)

	directComputes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "direct_computations_total",
			Help:      "Per-user summaries computed on the read path",
		},
		[]string{"result"},
	)

	invalidations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Users whose cached summaries were invalidated",
		},
	)

	batchPasses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_passes_total",
			Help:      "Batch aggregation passes by result",
		},
		[]string{"result"},
	)

	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_pass_duration_seconds",
			Help:      "Duration of completed batch passes",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	batchUsers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_users_summarized",
			Help:      "Users summarized by the last completed batch pass",
		},
	)

	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_breaker_transitions_total",
			Help:      "Cache circuit breaker state transitions",
		},
		[]string{"to"},
	)

	registry.MustRegister(
		cacheLookups,
		softFailures,
		directComputes,
		invalidations,
		batchPasses,
		batchDuration,
		batchUsers,
		breakerChanges,
	)

	return &Collector{
		registry:       registry,
		CacheLookups:   cacheLookups,
		SoftFailures:   softFailures,
		DirectComputes: directComputes,
		Invalidations:  invalidations,
		BatchPasses:    batchPasses,
		BatchDuration:  batchDuration,
		BatchUsers:     batchUsers,
		BreakerChanges: breakerChanges,
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// CacheLookup records one lookup against tier.
func (c *Collector) CacheLookup(tier, outcome string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(tier, outcome).Inc()
}

// SoftFailure records a degraded cache operation.
func (c *Collector) SoftFailure(op string) {
	if c == nil {
		return
	}
	c.SoftFailures.WithLabelValues(op).Inc()
}

// DirectCompute records a read-path computation; result is "ok", "not_found" or "error".
func (c *Collector) DirectCompute(result string) {
	if c == nil {
		return
	}
	c.DirectComputes.WithLabelValues(result).Inc()
}

// Invalidated records n invalidated users.
func (c *Collector) Invalidated(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Invalidations.Add(float64(n))
}

// BatchPass records a pass result. Duration and user count are only kept for completed passes.
func (c *Collector) BatchPass(result string, d time.Duration, users int) {
	if c == nil {
		return
	}
	c.BatchPasses.WithLabelValues(result).Inc()
	if result == PassCompleted {
		c.BatchDuration.Observe(d.Seconds())
		c.BatchUsers.Set(float64(users))
	}
}

// BreakerTransition records a breaker moving to state to.
func (c *Collector) BreakerTransition(to string) {
	if c == nil {
		return
	}
	c.BreakerChanges.WithLabelValues(to).Inc()
}
