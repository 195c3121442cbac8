package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("debt_summary")

	c.CacheLookup(TierUser, "hit")
	c.CacheLookup(TierUser, "hit")
	c.CacheLookup(TierSystem, "miss")
	c.SoftFailure("get")
	c.DirectCompute("ok")
	c.Invalidated(3)
	c.Invalidated(0)
	c.BreakerTransition("open")

	if got := testutil.ToFloat64(c.CacheLookups.WithLabelValues(TierUser, "hit")); got != 2 {
		t.Errorf("user hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.CacheLookups.WithLabelValues(TierSystem, "miss")); got != 1 {
		t.Errorf("system misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.SoftFailures.WithLabelValues("get")); got != 1 {
		t.Errorf("soft failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.DirectComputes.WithLabelValues("ok")); got != 1 {
		t.Errorf("direct computes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Invalidations); got != 3 {
		t.Errorf("invalidations = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.BreakerChanges.WithLabelValues("open")); got != 1 {
		t.Errorf("breaker transitions = %v, want 1", got)
	}
}

func TestCollector_BatchPass(t *testing.T) {
	c := NewCollector("debt_summary")

	c.BatchPass(PassCompleted, 2*time.Second, 42)
	c.BatchPass(PassFailed, time.Second, 0)

	if got := testutil.ToFloat64(c.BatchPasses.WithLabelValues(PassCompleted)); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.BatchPasses.WithLabelValues(PassFailed)); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.BatchUsers); got != 42 {
		t.Errorf("users gauge = %v, want 42 (failed pass must not reset it)", got)
	}
	if got := testutil.CollectAndCount(c.BatchDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector

	c.CacheLookup(TierUser, "hit")
	c.SoftFailure("set")
	c.DirectCompute("error")
	c.Invalidated(1)
	c.BatchPass(PassCompleted, time.Second, 1)
	c.BreakerTransition("closed")

	if c.Registry() != nil {
		t.Error("expected nil registry")
	}
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("debt_summary")
	c.CacheLookup(TierSystem, "hit")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `debt_summary_cache_lookups_total{outcome="hit",tier="system"} 1`) {
		t.Errorf("exposition missing lookup counter:\n%s", rec.Body.String())
	}
}
