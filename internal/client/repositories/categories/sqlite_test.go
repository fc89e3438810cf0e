package categories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'despesa',
    color_hex TEXT NOT NULL DEFAULT '',
    last_modified INTEGER NOT NULL DEFAULT 0,
    sync_status INTEGER NOT NULL DEFAULT 0,
    server_hash TEXT NOT NULL DEFAULT '',
    last_sync_time INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func TestListByType(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Category{Name: "Salário", Type: models.TransactionTypeIncome}))
	require.NoError(t, r.Create(ctx, &models.Category{Name: "Mercado", Type: models.TransactionTypeExpense}))
	require.NoError(t, r.Create(ctx, &models.Category{Name: "Transporte", Type: models.TransactionTypeExpense}))

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	expenses, err := r.ListByType(ctx, models.TransactionTypeExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	for _, c := range expenses {
		assert.Equal(t, models.TransactionTypeExpense, c.Type)
	}
}

func TestUpsertByUUID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	server := &models.Category{
		UUID: "cat-1", Name: "Lazer", Type: models.TransactionTypeExpense, ColorHex: "#ff0000",
		LastModified: 100, SyncStatus: models.SyncStatusSynced, ServerHash: "h1",
	}

	applied, err := r.UpsertByUUID(ctx, server)
	require.NoError(t, err)
	assert.True(t, applied)

	// Identical content a second time is a no-op duplicate.
	again := *server
	applied, err = r.UpsertByUUID(ctx, &again)
	require.NoError(t, err)
	assert.False(t, applied)

	changed := *server
	changed.ColorHex = "#00ff00"
	applied, err = r.UpsertByUUID(ctx, &changed)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := r.GetByUUID(ctx, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", got.ColorHex)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "upsert must never duplicate a uuid")
}

func TestListPendingSync_NoUserScope(t *testing.T) {
	// Categories are shared vocabulary, not per-user data, so pending
	// selection has no user filter.
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Category{Name: "local", SyncStatus: models.SyncStatusLocalOnly}))
	require.NoError(t, r.Create(ctx, &models.Category{Name: "synced", SyncStatus: models.SyncStatusSynced}))
	require.NoError(t, r.Create(ctx, &models.Category{Name: "edited", SyncStatus: models.SyncStatusNeedsSync}))

	pending, err := r.ListPendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "local", pending[0].Name)
	assert.Equal(t, "edited", pending[1].Name)
}

func TestMarkSyncedAndConflict(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	c := &models.Category{Name: "Lazer", SyncStatus: models.SyncStatusLocalOnly}
	require.NoError(t, r.Create(ctx, c))

	require.NoError(t, r.MarkSynced(ctx, c.LocalID, 700, "agreed"))
	got, err := r.GetByID(ctx, c.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, int64(700), got.LastSyncTime)
	assert.Equal(t, "agreed", got.ServerHash)

	require.NoError(t, r.MarkConflict(ctx, c.UUID))
	got, err = r.GetByID(ctx, c.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusConflict, got.SyncStatus)
}

func TestDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	c := &models.Category{Name: "Temporária"}
	require.NoError(t, r.Create(ctx, c))
	require.NoError(t, r.Delete(ctx, c.LocalID))

	_, err := r.GetByID(ctx, c.LocalID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, c.LocalID), common.ErrNotFound)
}
