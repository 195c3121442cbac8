package cacheinfra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// ErrInvalidTTL is returned when a value is stored without a positive TTL.
var ErrInvalidTTL = errors.New("cacheinfra: ttl must be greater than 0")

// tieredEntry is what each tier holds. seq orders writes across tiers.
type tieredEntry struct {
	seq   uint64
	value []byte
}

// TieredStore is an in-process store with per-key TTLs.
//
// sturdyc fixes the TTL per client, so the store keeps one client per distinct
// TTL and writes a key into exactly one tier at a time. Every write carries a
// sequence number; Get returns the newest entry found so a reader racing a
// tier move never sees the older value. Writes are serialized.
type TieredStore struct {
	cfg   Config
	mu    sync.Mutex
	tiers *xsync.MapOf[time.Duration, *sturdyc.Client[tieredEntry]]
	seq   atomic.Uint64
}

// NewTieredStore creates an empty tiered store. Tiers are created lazily.
func NewTieredStore(cfg Config) (*TieredStore, error) {
	cfg.Backend = BackendMemory
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &TieredStore{
		cfg:   cfg,
		tiers: xsync.NewMapOf[time.Duration, *sturdyc.Client[tieredEntry]](),
	}, nil
}

func (s *TieredStore) tier(ttl time.Duration) *sturdyc.Client[tieredEntry] {
	client, _ := s.tiers.LoadOrCompute(ttl, func() *sturdyc.Client[tieredEntry] {
		return sturdyc.New[tieredEntry](
			s.cfg.Capacity,
			s.cfg.NumShards,
			ttl,
			s.cfg.EvictionPercentage,
			s.cfg.ToSturdycOptions()...,
		)
	})
	return client
}

// Get returns the newest unexpired value stored under key.
func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var (
		best  tieredEntry
		found bool
	)
	s.tiers.Range(func(_ time.Duration, client *sturdyc.Client[tieredEntry]) bool {
		if entry, ok := client.Get(key); ok && (!found || entry.seq > best.seq) {
			best, found = entry, true
		}
		return true
	})

	if !found {
		return nil, false, nil
	}
	return best.value, true, nil
}

// Set stores value under key for ttl and drops the key from every other tier.
func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := tieredEntry{seq: s.seq.Add(1), value: append([]byte(nil), value...)}
	s.tier(ttl).Set(key, entry)

	s.tiers.Range(func(tierTTL time.Duration, client *sturdyc.Client[tieredEntry]) bool {
		if tierTTL != ttl {
			client.Delete(key)
		}
		return true
	})
	return nil
}

// Delete removes key from every tier.
func (s *TieredStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tiers.Range(func(_ time.Duration, client *sturdyc.Client[tieredEntry]) bool {
		client.Delete(key)
		return true
	})
	return nil
}

// Keys lists every key currently held, across tiers.
func (s *TieredStore) Keys() []string {
	seen := make(map[string]struct{})
	s.tiers.Range(func(_ time.Duration, client *sturdyc.Client[tieredEntry]) bool {
		for _, key := range client.ScanKeys() {
			seen[key] = struct{}{}
		}
		return true
	})

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys
}
