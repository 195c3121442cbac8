package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-debt-summary/debt"
)

// CreateSchema creates the users and debts tables and the paging index if
// they do not exist. It is a development bootstrap, not a migration tool.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{(*debt.User)(nil), (*debt.Debt)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table for %T: %w", model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*debt.Debt)(nil)).
		Index("debts_user_id_due_date_idx").
		Column("user_id", "due_date").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: create debts index: %w", err)
	}
	return nil
}
