package di

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-debt-summary/internal/config"
)

// OpenDB opens a bun database for driver, one of config.DriverPostgres or
// config.DriverSQLite. The connection is not verified.
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case config.DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case config.DriverSQLite:
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// every connection to :memory: is its own database
		if dsn == "" || strings.Contains(dsn, ":memory:") {
			sqldb.SetMaxOpenConns(1)
			sqldb.SetConnMaxLifetime(0)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
