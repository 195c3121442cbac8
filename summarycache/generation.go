package summarycache

import "sync/atomic"

// Generation counts invalidations in this process. Writers capture it before
// reading the store and skip caching when it moved, so a computation that read
// pre-write data cannot repopulate a slot the invalidator just cleared.
type Generation struct {
	n atomic.Uint64
}

// Current returns the current generation.
func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// Bump starts a new generation.
func (g *Generation) Bump() uint64 {
	return g.n.Add(1)
}

// Unchanged reports whether no invalidation happened since since was captured.
func (g *Generation) Unchanged(since uint64) bool {
	return g.n.Load() == since
}
