package cache

import (
	"context"
	"time"
)

// KeySerializer builds a cache key from a segment name + arbitrary args.
// It is responsible for producing stable keys across calls and processes.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// Store is the key/value backend summaries are cached in.
//
// Get reports a miss with ok == false and a nil error. Any non-nil error is an
// infrastructure failure; callers in this module never surface it to readers.
// Set and Delete are atomic per key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
