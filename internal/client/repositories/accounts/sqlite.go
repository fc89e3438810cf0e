package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/dbx"
	"github.com/finanzaapp/finsync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx), so one batch of sync writes can run inside a single
// transaction.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const accountColumns = `id, uuid, name, type, initial_balance, user_id,
	last_modified, sync_status, server_hash, last_sync_time`

func scanAccount(row interface{ Scan(dest ...any) error }) (*models.Account, error) {
	a := &models.Account{}
	var status int
	err := row.Scan(&a.LocalID, &a.UUID, &a.Name, &a.Type, &a.InitialBalance,
		&a.UserID, &a.LastModified, &status, &a.ServerHash, &a.LastSyncTime)
	if err != nil {
		return nil, err
	}
	a.SyncStatus = models.SyncStatus(status)
	return a, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE uuid=?`, uuid)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID int64) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id=? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, a *models.Account) error {
	a.EnsureUUID()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (uuid, name, type, initial_balance, user_id,
			last_modified, sync_status, server_hash, last_sync_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.Name, a.Type, a.InitialBalance, a.UserID,
		a.LastModified, int(a.SyncStatus), a.ServerHash, a.LastSyncTime)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	a.LocalID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted account id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, a *models.Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET name=?, type=?, initial_balance=?, user_id=?,
			last_modified=?, sync_status=?, server_hash=?, last_sync_time=?
		WHERE id=?`,
		a.Name, a.Type, a.InitialBalance, a.UserID,
		a.LastModified, int(a.SyncStatus), a.ServerHash, a.LastSyncTime, a.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

// UpsertByUUID applies a downloaded server copy. The row keeps its local id
// and uuid; content, sync metadata and server hash come from the server
// copy. A content match is reported as a duplicate (applied=false).
func (r *SQLiteRepository) UpsertByUUID(ctx context.Context, a *models.Account) (bool, error) {
	existing, err := r.GetByUUID(ctx, a.UUID)
	if errors.Is(err, common.ErrNotFound) {
		if err := r.Create(ctx, a); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.DataHash() == a.DataHash() {
		// Same content already present: idempotent no-op, refresh the
		// agreed hash in case only metadata lagged behind.
		if existing.ServerHash != a.ServerHash || existing.SyncStatus != a.SyncStatus {
			existing.ServerHash = a.ServerHash
			existing.SyncStatus = a.SyncStatus
			existing.LastSyncTime = a.LastSyncTime
			if err := r.Update(ctx, existing); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	a.LocalID = existing.LocalID
	if a.UserID == 0 {
		a.UserID = existing.UserID
	}
	if err := r.Update(ctx, a); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepository) ListPendingSync(ctx context.Context, userID int64) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE user_id=? AND sync_status IN (?, ?) ORDER BY id`,
		userID, int(models.SyncStatusLocalOnly), int(models.SyncStatusNeedsSync))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending accounts: %w", err)
	}
	defer rows.Close()

	var pending []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, localID int64, ts int64, serverHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET sync_status=?, last_sync_time=?, server_hash=? WHERE id=?`,
		int(models.SyncStatusSynced), ts, serverHash, localID)
	if err != nil {
		return fmt.Errorf("failed to mark account synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkConflict(ctx context.Context, uuid string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET sync_status=? WHERE uuid=?`,
		int(models.SyncStatusConflict), uuid)
	if err != nil {
		return fmt.Errorf("failed to mark account conflicted: %w", err)
	}
	return nil
}
