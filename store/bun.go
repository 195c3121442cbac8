package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-debt-summary/debt"
)

// BunStore reads debts and users through bun.
type BunStore struct {
	db     *bun.DB
	txOpts *sql.TxOptions
}

// NewBunStore wraps db. Multi-statement reads run in a read-only repeatable
// read transaction on postgres and a plain transaction elsewhere.
func NewBunStore(db *bun.DB) *BunStore {
	var opts *sql.TxOptions
	if db.Dialect().Name() == dialect.PG {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return &BunStore{db: db, txOpts: opts}
}

// DB exposes the underlying handle.
func (s *BunStore) DB() *bun.DB {
	return s.db
}

func (s *BunStore) GetAllDebts(ctx context.Context) ([]debt.Debt, error) {
	return allDebts(ctx, s.db)
}

func (s *BunStore) GetDebtsByUser(ctx context.Context, userID uuid.UUID) ([]debt.Debt, error) {
	var debts []debt.Debt
	err := s.db.NewSelect().
		Model(&debts).
		Where("d.user_id = ?", userID).
		Order("d.due_date DESC", "d.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: debts of user %s: %w", userID, err)
	}
	return debts, nil
}

func (s *BunStore) GetAllUsers(ctx context.Context) ([]debt.User, error) {
	return allUsers(ctx, s.db)
}

func (s *BunStore) GetUser(ctx context.Context, userID uuid.UUID) (debt.User, error) {
	var user debt.User
	err := s.db.NewSelect().
		Model(&user).
		Where("u.id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return debt.User{}, fmt.Errorf("store: user %s: %w", userID, debt.ErrNotFound)
	}
	if err != nil {
		return debt.User{}, fmt.Errorf("store: user %s: %w", userID, err)
	}
	return user, nil
}

func (s *BunStore) CountDebtsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return countDebts(ctx, s.db, userID)
}

func (s *BunStore) GetDebtsPage(ctx context.Context, userID uuid.UUID, skip, take int) ([]debt.Debt, error) {
	return pageDebts(ctx, s.db, userID, skip, take)
}

// DebtsPage reads the page and the count inside one transaction.
func (s *BunStore) DebtsPage(ctx context.Context, userID uuid.UUID, skip, take int) ([]debt.Debt, int, error) {
	var (
		items []debt.Debt
		total int
	)
	err := s.db.RunInTx(ctx, s.txOpts, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if items, err = pageDebts(ctx, tx, userID, skip, take); err != nil {
			return err
		}
		total, err = countDebts(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Snapshot loads every user and debt inside one transaction.
func (s *BunStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.db.RunInTx(ctx, s.txOpts, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if snap.Users, err = allUsers(ctx, tx); err != nil {
			return err
		}
		snap.Debts, err = allDebts(ctx, tx)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func allDebts(ctx context.Context, db bun.IDB) ([]debt.Debt, error) {
	var debts []debt.Debt
	if err := db.NewSelect().Model(&debts).Order("d.due_date DESC", "d.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("store: all debts: %w", err)
	}
	return debts, nil
}

func allUsers(ctx context.Context, db bun.IDB) ([]debt.User, error) {
	var users []debt.User
	if err := db.NewSelect().Model(&users).Order("u.created_at ASC", "u.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("store: all users: %w", err)
	}
	return users, nil
}

func countDebts(ctx context.Context, db bun.IDB, userID uuid.UUID) (int, error) {
	n, err := db.NewSelect().
		Model((*debt.Debt)(nil)).
		Where("d.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: count debts of user %s: %w", userID, err)
	}
	return n, nil
}

func pageDebts(ctx context.Context, db bun.IDB, userID uuid.UUID, skip, take int) ([]debt.Debt, error) {
	if skip < 0 {
		skip = 0
	}
	var debts []debt.Debt
	err := db.NewSelect().
		Model(&debts).
		Where("d.user_id = ?", userID).
		Order("d.due_date DESC", "d.id ASC").
		Offset(skip).
		Limit(take).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: page of user %s: %w", userID, err)
	}
	return debts, nil
}
