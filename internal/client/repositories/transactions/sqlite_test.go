package transactions

import (
	"context"
	"database/sql"
	"testing"

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
CREATE TABLE transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    amount REAL NOT NULL DEFAULT 0,
    date INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT 'despesa',
    account_id INTEGER NOT NULL DEFAULT 0,
    category_id INTEGER NOT NULL DEFAULT 0,
    user_id INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    last_modified INTEGER NOT NULL DEFAULT 0,
    sync_status INTEGER NOT NULL DEFAULT 0,
    server_hash TEXT NOT NULL DEFAULT '',
    last_sync_time INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func newTx(date int64, desc string) *models.Transaction {
	return &models.Transaction{
		Amount:      10,
		Date:        date,
		Description: desc,
		Type:        models.TransactionTypeExpense,
		AccountID:   1,
		CategoryID:  1,
		UserID:      1,
	}
}

func TestList_NewestFirstExcludingTombstones(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	older := newTx(100, "older")
	newer := newTx(200, "newer")
	dead := newTx(300, "dead")
	dead.Deleted = true
	require.NoError(t, r.Create(ctx, older))
	require.NoError(t, r.Create(ctx, newer))
	require.NoError(t, r.Create(ctx, dead))

	list, err := r.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Description)
	assert.Equal(t, "older", list[1].Description)
}

func TestListByPeriodAndAccount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	in := newTx(150, "inside")
	out := newTx(500, "outside")
	other := newTx(160, "other account")
	other.AccountID = 2
	require.NoError(t, r.Create(ctx, in))
	require.NoError(t, r.Create(ctx, out))
	require.NoError(t, r.Create(ctx, other))

	period, err := r.ListByPeriod(ctx, 1, 100, 200)
	require.NoError(t, err)
	require.Len(t, period, 2)

	byAccount, err := r.ListByAccount(ctx, 2)
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "other account", byAccount[0].Description)
}

func TestSoftDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	tx := newTx(100, "to delete")
	tx.SyncStatus = models.SyncStatusSynced
	require.NoError(t, r.Create(ctx, tx))

	require.NoError(t, r.SoftDelete(ctx, tx.LocalID, 999))

	// Gone from the live list, but the row survives as a tombstone.
	list, err := r.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := r.GetByID(ctx, tx.LocalID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, int64(999), got.LastModified)
	assert.Equal(t, models.SyncStatusNeedsSync, got.SyncStatus)

	// And it is queued for upload so the deletion propagates.
	pending, err := r.ListPendingSync(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tx.UUID, pending[0].UUID)
}

func TestUpsertByUUID_TombstoneFromServer(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	local := newTx(100, "shared")
	local.SyncStatus = models.SyncStatusSynced
	require.NoError(t, r.Create(ctx, local))

	server := *local
	server.Deleted = true
	server.LastModified = 200
	applied, err := r.UpsertByUUID(ctx, &server)
	require.NoError(t, err)
	assert.True(t, applied, "tombstone is a content change")

	got, err := r.GetByUUID(ctx, local.UUID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}
