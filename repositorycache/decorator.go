package repositorycache

import (
	"context"
	"database/sql"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-debt-summary/debt"
)

// Interface assertion to ensure DebtRepository implements Repository[*debt.Debt]
var _ repository.Repository[*debt.Debt] = (*DebtRepository)(nil)

// Invalidator drops cached summaries of the given owners.
// summarycache.Invalidator implements it.
type Invalidator interface {
	OnDebtsChanged(ctx context.Context, userIDs ...uuid.UUID)
	InvalidateAll(ctx context.Context) error
}

// DebtRepository decorates a debt repository so that every successful write
// invalidates the summaries of the owners it touched. Reads are delegated
// unchanged through the embedded repository.
type DebtRepository struct {
	repository.Repository[*debt.Debt]
	invalidator Invalidator
	logger      zerolog.Logger
}

// Option configures a DebtRepository.
type Option func(*DebtRepository)

// WithLogger sets the logger used for invalidation failures.
func WithLogger(l zerolog.Logger) Option {
	return func(r *DebtRepository) { r.logger = l }
}

// New wraps base so that writes invalidate through inv.
func New(base repository.Repository[*debt.Debt], inv Invalidator, opts ...Option) *DebtRepository {
	r := &DebtRepository{
		Repository:  base,
		invalidator: inv,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create creates a debt and invalidates its owner.
func (r *DebtRepository) Create(ctx context.Context, record *debt.Debt, criteria ...repository.InsertCriteria) (*debt.Debt, error) {
	result, err := r.Repository.Create(ctx, record, criteria...)
	if err == nil {
		r.invalidate(ctx, ownersOf(result, record)...)
	}
	return result, err
}

// CreateTx creates a debt within a transaction.
func (r *DebtRepository) CreateTx(ctx context.Context, tx bun.IDB, record *debt.Debt, criteria ...repository.InsertCriteria) (*debt.Debt, error) {
	result, err := r.Repository.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, ownersOf(result, record)...)
	}
	return result, err
}

// CreateMany creates debts and invalidates every owner once.
func (r *DebtRepository) CreateMany(ctx context.Context, records []*debt.Debt, criteria ...repository.InsertCriteria) ([]*debt.Debt, error) {
	result, err := r.Repository.CreateMany(ctx, records, criteria...)
	if err == nil {
		r.invalidate(ctx, collectOwners(nil, result, records)...)
	}
	return result, err
}

// CreateManyTx creates debts within a transaction.
func (r *DebtRepository) CreateManyTx(ctx context.Context, tx bun.IDB, records []*debt.Debt, criteria ...repository.InsertCriteria) ([]*debt.Debt, error) {
	result, err := r.Repository.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, collectOwners(nil, result, records)...)
	}
	return result, err
}

// GetOrCreate may create the debt, so its owner is invalidated either way.
func (r *DebtRepository) GetOrCreate(ctx context.Context, record *debt.Debt) (*debt.Debt, error) {
	result, err := r.Repository.GetOrCreate(ctx, record)
	if err == nil {
		r.invalidate(ctx, ownersOf(result)...)
	}
	return result, err
}

// GetOrCreateTx is GetOrCreate within a transaction.
func (r *DebtRepository) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *debt.Debt) (*debt.Debt, error) {
	result, err := r.Repository.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, ownersOf(result)...)
	}
	return result, err
}

// Update updates a debt. When the update moves the debt to another user both
// the previous and the new owner are invalidated.
func (r *DebtRepository) Update(ctx context.Context, record *debt.Debt, criteria ...repository.UpdateCriteria) (*debt.Debt, error) {
	previous := r.previousOwners(ctx, nil, record)
	result, err := r.Repository.Update(ctx, record, criteria...)
	if err == nil {
		r.invalidate(ctx, append(previous, ownersOf(result, record)...)...)
	}
	return result, err
}

// UpdateTx updates a debt within a transaction.
func (r *DebtRepository) UpdateTx(ctx context.Context, tx bun.IDB, record *debt.Debt, criteria ...repository.UpdateCriteria) (*debt.Debt, error) {
	previous := r.previousOwners(ctx, tx, record)
	result, err := r.Repository.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, append(previous, ownersOf(result, record)...)...)
	}
	return result, err
}

// UpdateMany updates debts.
func (r *DebtRepository) UpdateMany(ctx context.Context, records []*debt.Debt, criteria ...repository.UpdateCriteria) ([]*debt.Debt, error) {
	previous := r.previousOwners(ctx, nil, records...)
	result, err := r.Repository.UpdateMany(ctx, records, criteria...)
	if err == nil {
		r.invalidate(ctx, collectOwners(previous, result, records)...)
	}
	return result, err
}

// UpdateManyTx updates debts within a transaction.
func (r *DebtRepository) UpdateManyTx(ctx context.Context, tx bun.IDB, records []*debt.Debt, criteria ...repository.UpdateCriteria) ([]*debt.Debt, error) {
	previous := r.previousOwners(ctx, tx, records...)
	result, err := r.Repository.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, collectOwners(previous, result, records)...)
	}
	return result, err
}

// Upsert inserts or updates a debt; it invalidates like an update.
func (r *DebtRepository) Upsert(ctx context.Context, record *debt.Debt, criteria ...repository.UpdateCriteria) (*debt.Debt, error) {
	previous := r.previousOwners(ctx, nil, record)
	result, err := r.Repository.Upsert(ctx, record, criteria...)
	if err == nil {
		r.invalidate(ctx, append(previous, ownersOf(result, record)...)...)
	}
	return result, err
}

// UpsertTx is Upsert within a transaction.
func (r *DebtRepository) UpsertTx(ctx context.Context, tx bun.IDB, record *debt.Debt, criteria ...repository.UpdateCriteria) (*debt.Debt, error) {
	previous := r.previousOwners(ctx, tx, record)
	result, err := r.Repository.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, append(previous, ownersOf(result, record)...)...)
	}
	return result, err
}

// UpsertMany inserts or updates debts.
func (r *DebtRepository) UpsertMany(ctx context.Context, records []*debt.Debt, criteria ...repository.UpdateCriteria) ([]*debt.Debt, error) {
	previous := r.previousOwners(ctx, nil, records...)
	result, err := r.Repository.UpsertMany(ctx, records, criteria...)
	if err == nil {
		r.invalidate(ctx, collectOwners(previous, result, records)...)
	}
	return result, err
}

// UpsertManyTx is UpsertMany within a transaction.
func (r *DebtRepository) UpsertManyTx(ctx context.Context, tx bun.IDB, records []*debt.Debt, criteria ...repository.UpdateCriteria) ([]*debt.Debt, error) {
	previous := r.previousOwners(ctx, tx, records...)
	result, err := r.Repository.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, collectOwners(previous, result, records)...)
	}
	return result, err
}

// Delete deletes a debt and invalidates its owner.
func (r *DebtRepository) Delete(ctx context.Context, record *debt.Debt) error {
	owners := r.deletedOwners(ctx, nil, record)
	err := r.Repository.Delete(ctx, record)
	if err == nil {
		r.invalidate(ctx, owners...)
	}
	return err
}

// DeleteTx deletes a debt within a transaction.
func (r *DebtRepository) DeleteTx(ctx context.Context, tx bun.IDB, record *debt.Debt) error {
	owners := r.deletedOwners(ctx, tx, record)
	err := r.Repository.DeleteTx(ctx, tx, record)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, owners...)
	}
	return err
}

// ForceDelete hard deletes a debt and invalidates its owner.
func (r *DebtRepository) ForceDelete(ctx context.Context, record *debt.Debt) error {
	owners := r.deletedOwners(ctx, nil, record)
	err := r.Repository.ForceDelete(ctx, record)
	if err == nil {
		r.invalidate(ctx, owners...)
	}
	return err
}

// ForceDeleteTx hard deletes a debt within a transaction.
func (r *DebtRepository) ForceDeleteTx(ctx context.Context, tx bun.IDB, record *debt.Debt) error {
	owners := r.deletedOwners(ctx, tx, record)
	err := r.Repository.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		r.invalidateAfterCommit(ctx, tx, owners...)
	}
	return err
}

// DeleteMany deletes by criteria. The affected owners are unknown, so every
// summary is invalidated.
func (r *DebtRepository) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := r.Repository.DeleteMany(ctx, criteria...)
	if err == nil {
		r.invalidateAll(ctx)
	}
	return err
}

// DeleteManyTx is DeleteMany within a transaction.
func (r *DebtRepository) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := r.Repository.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		r.invalidateAllAfterCommit(ctx, tx)
	}
	return err
}

// DeleteWhere deletes by criteria and invalidates every summary.
func (r *DebtRepository) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := r.Repository.DeleteWhere(ctx, criteria...)
	if err == nil {
		r.invalidateAll(ctx)
	}
	return err
}

// DeleteWhereTx is DeleteWhere within a transaction.
func (r *DebtRepository) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := r.Repository.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		r.invalidateAllAfterCommit(ctx, tx)
	}
	return err
}

// FlushInvalidations applies the invalidations recorded in ctx by *Tx writes.
// Call it after the transaction committed; after a rollback, simply drop ctx.
func (r *DebtRepository) FlushInvalidations(ctx context.Context) {
	p := pendingFromContext(ctx)
	if p == nil {
		return
	}
	owners, all := p.drain()
	if all {
		r.invalidateAll(ctx)
		return
	}
	r.invalidate(ctx, owners...)
}

func (r *DebtRepository) invalidate(ctx context.Context, owners ...uuid.UUID) {
	owners = dedupeOwners(owners)
	if len(owners) == 0 {
		return
	}
	r.invalidator.OnDebtsChanged(ctx, owners...)
}

func (r *DebtRepository) invalidateAll(ctx context.Context) {
	if err := r.invalidator.InvalidateAll(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("invalidating all summaries failed, entries will expire by ttl")
	}
}

// RunInTx runs fn in a transaction on db and invalidates the owners touched
// by *Tx writes inside fn once the transaction has committed. Nothing is
// invalidated when fn or the commit fails. Nested calls leave the flush to the
// outermost one.
func (r *DebtRepository) RunInTx(ctx context.Context, db bun.IDB, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	nested := pendingFromContext(ctx) != nil
	ctx = WithPendingInvalidations(ctx)

	if err := db.RunInTx(ctx, opts, fn); err != nil {
		if !nested {
			pendingFromContext(ctx).drain()
		}
		return err
	}
	if !nested {
		r.FlushInvalidations(ctx)
	}
	return nil
}

// invalidateAfterCommit defers to the pending set in ctx when there is one.
// Without it the owners are invalidated immediately, which is only after
// commit when db is not a transaction.
func (r *DebtRepository) invalidateAfterCommit(ctx context.Context, db bun.IDB, owners ...uuid.UUID) {
	if p := pendingFromContext(ctx); p != nil {
		p.add(owners...)
		return
	}
	r.warnUncommitted(db)
	r.invalidate(ctx, owners...)
}

func (r *DebtRepository) invalidateAllAfterCommit(ctx context.Context, db bun.IDB) {
	if p := pendingFromContext(ctx); p != nil {
		p.markAll()
		return
	}
	r.warnUncommitted(db)
	r.invalidateAll(ctx)
}

func (r *DebtRepository) warnUncommitted(db bun.IDB) {
	switch db.(type) {
	case bun.Tx, *bun.Tx:
		r.logger.Warn().Msg("transactional debt write without pending invalidations, summaries invalidated before commit; use RunInTx")
	}
}

// previousOwners reads the stored owner of each record about to be updated.
// Records not stored yet contribute nothing.
func (r *DebtRepository) previousOwners(ctx context.Context, tx bun.IDB, records ...*debt.Debt) []uuid.UUID {
	var owners []uuid.UUID
	for _, rec := range records {
		if rec == nil || rec.ID == uuid.Nil {
			continue
		}
		var (
			stored *debt.Debt
			err    error
		)
		if tx != nil {
			stored, err = r.Repository.GetByIDTx(ctx, tx, rec.ID.String())
		} else {
			stored, err = r.Repository.GetByID(ctx, rec.ID.String())
		}
		if err != nil {
			r.logger.Debug().Err(err).Str("debt_id", rec.ID.String()).Msg("previous owner lookup failed")
			continue
		}
		owners = append(owners, ownersOf(stored)...)
	}
	return owners
}

// deletedOwners returns the owner of a record about to be deleted, reading it
// from the store when the caller passed only the identifier.
func (r *DebtRepository) deletedOwners(ctx context.Context, tx bun.IDB, record *debt.Debt) []uuid.UUID {
	if record == nil {
		return nil
	}
	if record.UserID != uuid.Nil {
		return []uuid.UUID{record.UserID}
	}
	return r.previousOwners(ctx, tx, record)
}

// collectOwners appends the owners of every record group to previous.
func collectOwners(previous []uuid.UUID, groups ...[]*debt.Debt) []uuid.UUID {
	owners := append([]uuid.UUID(nil), previous...)
	for _, g := range groups {
		owners = append(owners, ownersOf(g...)...)
	}
	return owners
}

func ownersOf(records ...*debt.Debt) []uuid.UUID {
	owners := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.UserID == uuid.Nil {
			continue
		}
		owners = append(owners, rec.UserID)
	}
	return owners
}
