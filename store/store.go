// Package store provides read access to debts and users for the summary
// subsystem. Writes go through the repository layer, never through here.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-debt-summary/debt"
)

// Reader is the query surface the aggregation and read paths depend on.
// GetUser returns debt.ErrNotFound for an unknown user.
// GetDebtsPage orders by due date descending.
type Reader interface {
	GetAllDebts(ctx context.Context) ([]debt.Debt, error)
	GetDebtsByUser(ctx context.Context, userID uuid.UUID) ([]debt.Debt, error)
	GetAllUsers(ctx context.Context) ([]debt.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (debt.User, error)
	CountDebtsByUser(ctx context.Context, userID uuid.UUID) (int, error)
	GetDebtsPage(ctx context.Context, userID uuid.UUID, skip, take int) ([]debt.Debt, error)
}

// Pager is implemented by stores that can return a page and the total count
// from one consistent read.
type Pager interface {
	DebtsPage(ctx context.Context, userID uuid.UUID, skip, take int) ([]debt.Debt, int, error)
}

// Snapshot is every debt and user as of one read.
type Snapshot struct {
	Debts []debt.Debt
	Users []debt.User
}

// SnapshotReader is implemented by stores that can load a consistent snapshot.
type SnapshotReader interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// LoadSnapshot uses the store's consistent snapshot when available, otherwise
// two independent reads.
func LoadSnapshot(ctx context.Context, r Reader) (Snapshot, error) {
	if s, ok := r.(SnapshotReader); ok {
		return s.Snapshot(ctx)
	}

	debts, err := r.GetAllDebts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	users, err := r.GetAllUsers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Debts: debts, Users: users}, nil
}

// LoadPage returns a page of a user's debts and the user's total debt count,
// from one read when the store implements Pager.
func LoadPage(ctx context.Context, r Reader, userID uuid.UUID, skip, take int) ([]debt.Debt, int, error) {
	if p, ok := r.(Pager); ok {
		return p.DebtsPage(ctx, userID, skip, take)
	}

	items, err := r.GetDebtsPage(ctx, userID, skip, take)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.CountDebtsByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
