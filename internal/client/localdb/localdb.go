// Package localdb opens the client's sqlite database, applies migrations
// and bundles the repositories the sync engine works against.
package localdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finanzaapp/finsync/internal/client/localdb/migrations"
	"github.com/finanzaapp/finsync/internal/client/repositories/accounts"
	"github.com/finanzaapp/finsync/internal/client/repositories/categories"
	"github.com/finanzaapp/finsync/internal/client/repositories/syncstate"
	"github.com/finanzaapp/finsync/internal/client/repositories/transactions"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Database owns the sql handle plus repositories bound to it. Sync phases
// that need batch atomicity open their own transaction via dbx.WithTx and
// construct tx-scoped repositories.
type Database struct {
	DB           *sql.DB
	Accounts     accounts.Repository
	Categories   categories.Repository
	Transactions transactions.Repository
	SyncState    syncstate.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the sqlite database at dsn and
// migrates it to the current schema.
func Open(ctx context.Context, dsn string) (*Database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{
		DB:           db,
		Accounts:     accounts.NewSQLiteRepository(db),
		Categories:   categories.NewSQLiteRepository(db),
		Transactions: transactions.NewSQLiteRepository(db),
		SyncState:    syncstate.NewSQLiteRepository(db),
	}, nil
}

// Close closes the underlying handle.
func (d *Database) Close() error {
	return d.DB.Close()
}
