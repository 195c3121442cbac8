package summarycache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/debt"
	"github.com/goliatone/go-debt-summary/internal/metrics"
	"github.com/goliatone/go-debt-summary/pkg/testsupport"
	"github.com/goliatone/go-debt-summary/store"
)

// fakeCache is a map-backed cache.Store that records writes and can fail on demand.
type fakeCache struct {
	mu        sync.Mutex
	data      map[string][]byte
	ttls      map[string]time.Duration
	sets      map[string]int
	deletes   map[string]int
	getErr    error
	setErr    error
	deleteErr error
	hang      bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data:    make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
		sets:    make(map[string]int),
		deletes: make(map[string]int),
	}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.hang {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[key]++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[key]++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, key)
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeCache) ttl(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func (f *fakeCache) setCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[key]
}

// fixture bundles a seeded store, a fake cache and a service/invalidator pair
// sharing one generation.
type fixture struct {
	ds      testsupport.Dataset
	store   *store.MemoryStore
	cache   *fakeCache
	layer   *cache.Layer
	clock   *clockwork.FakeClock
	metrics *metrics.Collector
	svc     *Service
	inv     *Invalidator
	keys    cache.KeySerializer
}

func newFixture(t *testing.T, codec cache.Codec) *fixture {
	t.Helper()
	ds := testsupport.LoadDataset(t, "u1")
	return newFixtureWithReader(t, ds, testsupport.NewMemoryStore(ds), codec)
}

func newFixtureWithReader(t *testing.T, ds testsupport.Dataset, r store.Reader, codec cache.Codec) *fixture {
	t.Helper()

	f := &fixture{
		ds:      ds,
		cache:   newFakeCache(),
		clock:   clockwork.NewFakeClockAt(ds.AsOf),
		metrics: metrics.NewCollector("test"),
		keys:    cache.NewDefaultKeySerializer(),
	}
	if m, ok := r.(*store.MemoryStore); ok {
		f.store = m
	}
	f.layer = cache.NewLayer(f.cache, codec, 50*time.Millisecond)

	gen := &Generation{}
	opts := []Option{
		WithClock(f.clock),
		WithMetrics(f.metrics),
		WithGeneration(gen),
		WithKeySerializer(f.keys),
	}
	f.svc = NewService(r, f.layer, opts...)
	f.inv = NewInvalidator(f.layer, r, opts...)
	return f
}

func (f *fixture) userKey(id uuid.UUID) string {
	return cache.UserSummaryKey(f.keys, id)
}

func (f *fixture) systemKey() string {
	return cache.SystemSummaryKey(f.keys)
}

func assertSummaryEqual(t *testing.T, want, got debt.UserDebtSummary) {
	t.Helper()
	assert.Equal(t, want.UserID, got.UserID, "UserID")
	assert.Equal(t, want.UserName, got.UserName, "UserName")
	assert.True(t, want.TotalAmount.Equal(got.TotalAmount), "TotalAmount want %s got %s", want.TotalAmount, got.TotalAmount)
	assert.Equal(t, want.TotalDebts, got.TotalDebts, "TotalDebts")
	assert.Equal(t, want.PaidDebts, got.PaidDebts, "PaidDebts")
	assert.Equal(t, want.OverdueDebts, got.OverdueDebts, "OverdueDebts")
	assert.True(t, want.OverdueAmount.Equal(got.OverdueAmount), "OverdueAmount want %s got %s", want.OverdueAmount, got.OverdueAmount)
	assert.True(t, want.ComputedAt.Equal(got.ComputedAt), "ComputedAt want %s got %s", want.ComputedAt, got.ComputedAt)
}
