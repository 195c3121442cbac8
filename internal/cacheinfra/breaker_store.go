package cacheinfra

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("cacheinfra: circuit open")

// StateChangeFunc observes breaker transitions.
type StateChangeFunc func(name string, from, to gobreaker.State)

// BreakerStore fails fast once the wrapped store keeps erroring, so a dead
// cache costs readers nothing beyond the fallback path.
type BreakerStore struct {
	next ByteStore
	cb   *gobreaker.CircuitBreaker
}

type lookup struct {
	value []byte
	ok    bool
}

// NewBreakerStore wraps next. Misses never count as failures.
func NewBreakerStore(name string, next ByteStore, cfg BreakerConfig, onChange StateChangeFunc) *BreakerStore {
	threshold := cfg.ConsecutiveFailures
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if onChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onChange(name, from, to)
		}
	}

	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Close closes the wrapped store when it holds resources.
func (b *BreakerStore) Close() error {
	if c, ok := b.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// State reports the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		value, ok, err := b.next.Get(ctx, key)
		return lookup{value: value, ok: ok}, err
	})
	if err != nil {
		return nil, false, translateBreakerErr(err)
	}
	l := res.(lookup)
	return l.value, l.ok, nil
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return translateBreakerErr(err)
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return translateBreakerErr(err)
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrCircuitOpen, err)
	}
	return err
}
