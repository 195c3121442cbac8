package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultOpTimeout bounds a single cache operation when no timeout is configured.
const DefaultOpTimeout = 250 * time.Millisecond

// ErrIncompatibleEntry marks a cached payload written with another schema version.
var ErrIncompatibleEntry = errors.New("cache: incompatible entry")

// Outcome classifies a cache lookup.
type Outcome uint8

const (
	// Miss means the key was absent or expired.
	Miss Outcome = iota
	// Hit means a compatible value was decoded.
	Hit
	// Failed means the backend or the decoder failed; callers treat it as a miss.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SoftError is a cache failure that callers degrade to a miss.
// It carries enough context to be logged at the boundary.
type SoftError struct {
	Op  string
	Key string
	Err error
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SoftError) Unwrap() error {
	return e.Err
}

// Result is the typed outcome of Load.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     *SoftError
}

// Hit reports whether Value holds a cached value.
func (r Result[T]) Hit() bool {
	return r.Outcome == Hit
}

// Layer gives typed, failure-tolerant access to a Store.
// Every operation is bounded by the configured timeout.
type Layer struct {
	store   Store
	codec   Codec
	timeout time.Duration
}

// NewLayer wraps store. A nil codec selects JSON; a non-positive timeout selects DefaultOpTimeout.
func NewLayer(store Store, codec Codec, timeout time.Duration) *Layer {
	if codec == nil {
		codec = JSONCodec{}
	}
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &Layer{store: store, codec: codec, timeout: timeout}
}

// Codec returns the codec used for entries.
func (l *Layer) Codec() Codec {
	return l.codec
}

// Load reads and decodes key. It never returns an error: backend failures,
// timeouts, undecodable payloads and schema mismatches all yield Failed.
func Load[T any](ctx context.Context, l *Layer, key string) Result[T] {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	data, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return Result[T]{Outcome: Failed, Err: &SoftError{Op: "get", Key: key, Err: err}}
	}
	if !ok || len(data) == 0 {
		return Result[T]{Outcome: Miss}
	}

	var env envelope[T]
	if err := l.codec.Unmarshal(data, &env); err != nil {
		return Result[T]{Outcome: Failed, Err: &SoftError{Op: "decode", Key: key, Err: err}}
	}
	if env.Schema != SchemaVersion {
		err := fmt.Errorf("%w: schema %d, want %d", ErrIncompatibleEntry, env.Schema, SchemaVersion)
		return Result[T]{Outcome: Failed, Err: &SoftError{Op: "decode", Key: key, Err: err}}
	}
	return Result[T]{Value: env.Value, Outcome: Hit}
}

// Save encodes value and stores it under key for ttl. A non-nil error is always a *SoftError.
func Save[T any](ctx context.Context, l *Layer, key string, value T, ttl time.Duration) error {
	data, err := l.codec.Marshal(envelope[T]{Schema: SchemaVersion, Value: value})
	if err != nil {
		return &SoftError{Op: "encode", Key: key, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.Set(ctx, key, data, ttl); err != nil {
		return &SoftError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Evict removes key. A non-nil error is always a *SoftError.
func (l *Layer) Evict(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.Delete(ctx, key); err != nil {
		return &SoftError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
