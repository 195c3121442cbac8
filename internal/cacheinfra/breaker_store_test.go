package cacheinfra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

type flakyStore struct {
	calls atomic.Int32
	err   error
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.calls.Add(1)
	return nil, false, f.err
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.calls.Add(1)
	return f.err
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.calls.Add(1)
	return f.err
}

func TestBreakerStore_TripsAfterConsecutiveFailures(t *testing.T) {
	backend := &flakyStore{err: errors.New("i/o timeout")}
	var transitions []gobreaker.State
	store := NewBreakerStore("test", backend, BreakerConfig{
		MaxRequests:         1,
		Timeout:             time.Hour,
		ConsecutiveFailures: 2,
	}, func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := store.Get(ctx, "k"); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}

	if store.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", store.State())
	}

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Set() error = %v, want ErrCircuitOpen", err)
	}
	if err := store.Delete(ctx, "k"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Delete() error = %v, want ErrCircuitOpen", err)
	}
	if got := backend.calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2 (open breaker must not reach backend)", got)
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}

func TestBreakerStore_MissesDoNotTrip(t *testing.T) {
	backend := &flakyStore{}
	store := NewBreakerStore("test", backend, BreakerConfig{ConsecutiveFailures: 1, Timeout: time.Hour}, nil)

	for i := 0; i < 5; i++ {
		value, ok, err := store.Get(context.Background(), "absent")
		if err != nil || ok || value != nil {
			t.Fatalf("Get() = %v, %v, %v; want clean miss", value, ok, err)
		}
	}
	if store.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", store.State())
	}
}

func TestBreakerStore_PassesValuesThrough(t *testing.T) {
	inner := newTestTieredStore(t)
	store := NewBreakerStore("test", inner, *DefaultConfig().Breaker, nil)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get() = %q, %v, %v", got, ok, err)
	}
}

type closingStore struct {
	flakyStore
	closed bool
}

func (c *closingStore) Close() error {
	c.closed = true
	return nil
}

func TestBreakerStore_CloseForwardsToBackend(t *testing.T) {
	backend := &closingStore{}
	store := NewBreakerStore("test", backend, BreakerConfig{ConsecutiveFailures: 1}, nil)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !backend.closed {
		t.Error("expected backend to be closed")
	}

	plain := NewBreakerStore("test", &flakyStore{}, BreakerConfig{ConsecutiveFailures: 1}, nil)
	if err := plain.Close(); err != nil {
		t.Errorf("Close() on a backend without resources = %v, want nil", err)
	}
}
