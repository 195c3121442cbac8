// Package repositorycache decorates a go-repository-bun debt repository so
// that writes keep the summary cache honest.
//
// # Overview
//
// DebtRepository embeds a repository.Repository[*debt.Debt] and overrides
// every write. Reads pass through unchanged. After a write succeeds the
// decorator asks its Invalidator to drop the summaries of the affected owners:
//
//	base := repository.NewRepository[*debt.Debt](db, handlers)
//	repo := repositorycache.New(base, invalidator)
//
//	// drops summary:user:<owner> and summary:system
//	_, err := repo.Create(ctx, debt.New(owner, "rent", amount, due, now))
//
// # Affected owners
//
//   - Create, CreateMany, GetOrCreate: the owner of every written record
//   - Update, Upsert and their bulk variants: the stored owner before the
//     write and the owner after it, so moving a debt drops both users
//   - Delete, ForceDelete: the record's owner, read from the store when only
//     the identifier was given
//   - DeleteMany, DeleteWhere: unknown, so every summary is dropped
//
// A failed write never invalidates. Invalidation failures are logged and never
// fail the write.
//
// # Transactions
//
// A *Tx write is not visible to other readers until commit. Dropping summaries
// before that lets a concurrent read cache the old state again, so the
// decorator defers the work to commit:
//
//	err := repo.RunInTx(ctx, db, nil, func(ctx context.Context, tx bun.Tx) error {
//		_, err := repo.UpdateTx(ctx, tx, d)
//		return err
//	})
//
// RunInTx is shorthand for WithPendingInvalidations, db.RunInTx and
// FlushInvalidations on success. A *Tx write given a bun.Tx with no pending
// set in its context invalidates immediately and logs a warning.
package repositorycache
