// Package summarycache serves debt summaries through the cache and keeps the
// cache honest when debts change.
//
// # Read path
//
// Service.GetUserSummary tries, in order:
//
//  1. the user's own entry (summary:user:<id>)
//  2. the user's slice of the system entry (summary:system), written back to
//     the user key with the medium TTL
//  3. a direct computation from the store for that user only, cached with the
//     short TTL
//
// A forced refresh goes straight to step 3. Cache failures of any kind count as
// misses; only store failures and debt.ErrNotFound reach the caller.
//
// Service.GetSystemSummary never computes inline: a miss, or a forced refresh,
// returns debt.ErrUnavailable until the batch aggregator has written the entry.
//
// # Invalidation
//
// Invalidator.OnDebtChanged must be called after the write has committed. It
// bumps the shared Generation and then deletes the user's entry and the system
// entry. Computations that started under an older generation return their
// result but do not cache it.
package summarycache
