package summarycache

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/store"
)

// Invalidator drops cached summaries after debts change.
type Invalidator struct {
	options
	layer *cache.Layer
	users store.Reader
}

// NewInvalidator builds an invalidator. users is only needed by InvalidateAll
// and may be nil otherwise.
func NewInvalidator(layer *cache.Layer, users store.Reader, opts ...Option) *Invalidator {
	return &Invalidator{
		options: buildOptions(opts),
		layer:   layer,
		users:   users,
	}
}

// Generation returns the generation this invalidator bumps.
func (inv *Invalidator) Generation() *Generation {
	return inv.generation
}

// OnDebtChanged drops the user's entry and the system entry. Call it after the
// write has committed. Cache failures are logged and swallowed.
func (inv *Invalidator) OnDebtChanged(ctx context.Context, userID uuid.UUID) {
	inv.OnDebtsChanged(ctx, userID)
}

// OnDebtsChanged is OnDebtChanged for several owners at once. Duplicates and
// uuid.Nil are ignored; the system entry is dropped once.
func (inv *Invalidator) OnDebtsChanged(ctx context.Context, userIDs ...uuid.UUID) {
	inv.generation.Bump()

	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		inv.evict(ctx, cache.UserSummaryKey(inv.keys, id))
	}
	inv.evict(ctx, cache.SystemSummaryKey(inv.keys))

	inv.metrics.Invalidated(len(seen))
	inv.logger.Debug().Int("users", len(seen)).Msg("summaries invalidated")
}

// InvalidateAll drops the system entry and every user's entry. It returns an
// error only when the user list cannot be read; the system entry is dropped
// regardless.
func (inv *Invalidator) InvalidateAll(ctx context.Context) error {
	inv.generation.Bump()
	inv.evict(ctx, cache.SystemSummaryKey(inv.keys))

	if inv.users == nil {
		return fmt.Errorf("invalidate all: no user source configured")
	}
	users, err := inv.users.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("invalidate all: %w", err)
	}
	for _, u := range users {
		inv.evict(ctx, cache.UserSummaryKey(inv.keys, u.ID))
	}

	inv.metrics.Invalidated(len(users))
	inv.logger.Info().Int("users", len(users)).Msg("all summaries invalidated")
	return nil
}

func (inv *Invalidator) evict(ctx context.Context, key string) {
	if err := inv.layer.Evict(ctx, key); err != nil {
		inv.metrics.SoftFailure("delete")
		inv.logger.Warn().Err(err).Str("key", key).Msg("cache invalidation failed, entry will expire by ttl")
	}
}
