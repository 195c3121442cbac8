package testsupport

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-debt-summary/store"
)

// OpenSQLite opens a private in-memory sqlite database with the schema created.
// The database lives as long as its single connection, which is closed on cleanup.
func OpenSQLite(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	if err := store.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// SeedBun inserts every user and debt of ds.
func SeedBun(t testing.TB, db bun.IDB, ds Dataset) {
	t.Helper()
	ctx := context.Background()

	if len(ds.Users) > 0 {
		if _, err := db.NewInsert().Model(&ds.Users).Exec(ctx); err != nil {
			t.Fatalf("failed to seed users: %v", err)
		}
	}
	if len(ds.Debts) > 0 {
		if _, err := db.NewInsert().Model(&ds.Debts).Exec(ctx); err != nil {
			t.Fatalf("failed to seed debts: %v", err)
		}
	}
}
