package repositorycache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type pendingContextKey struct{}

// pending collects the owners touched by transactional writes until the
// transaction commits.
type pending struct {
	mu     sync.Mutex
	owners []uuid.UUID
	all    bool
}

func (p *pending) add(ids ...uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owners = append(p.owners, ids...)
}

func (p *pending) markAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.all = true
}

// drain returns the collected owners and resets the set.
func (p *pending) drain() ([]uuid.UUID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	owners, all := dedupeOwners(p.owners), p.all
	p.owners, p.all = nil, false
	return owners, all
}

// WithPendingInvalidations returns a context in which *Tx writes record the
// affected owners instead of invalidating right away. Call
// DebtRepository.FlushInvalidations with the same context after commit.
// An existing pending set is kept.
func WithPendingInvalidations(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if pendingFromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, pendingContextKey{}, &pending{})
}

func pendingFromContext(ctx context.Context) *pending {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(pendingContextKey{}).(*pending)
	return p
}

func dedupeOwners(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
