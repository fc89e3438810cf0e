package transactions

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
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const transactionColumns = `id, uuid, amount, date, description, type,
	account_id, category_id, user_id, deleted,
	last_modified, sync_status, server_hash, last_sync_time`

func scanTransaction(row interface{ Scan(dest ...any) error }) (*models.Transaction, error) {
	t := &models.Transaction{}
	var status, deleted int
	err := row.Scan(&t.LocalID, &t.UUID, &t.Amount, &t.Date, &t.Description, &t.Type,
		&t.AccountID, &t.CategoryID, &t.UserID, &deleted,
		&t.LastModified, &status, &t.ServerHash, &t.LastSyncTime)
	if err != nil {
		return nil, err
	}
	t.SyncStatus = models.SyncStatus(status)
	t.Deleted = deleted != 0
	return t, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE uuid=?`, uuid)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id=? AND deleted=0 ORDER BY date DESC, id DESC`, userID)
}

func (r *SQLiteRepository) ListByPeriod(ctx context.Context, userID int64, from, to int64) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id=? AND deleted=0 AND date>=? AND date<=? ORDER BY date DESC, id DESC`,
		userID, from, to)
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE account_id=? AND deleted=0 ORDER BY date DESC, id DESC`, accountID)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, t *models.Transaction) error {
	t.EnsureUUID()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (uuid, amount, date, description, type,
			account_id, category_id, user_id, deleted,
			last_modified, sync_status, server_hash, last_sync_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UUID, t.Amount, t.Date, t.Description, t.Type,
		t.AccountID, t.CategoryID, t.UserID, boolToInt(t.Deleted),
		t.LastModified, int(t.SyncStatus), t.ServerHash, t.LastSyncTime)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	t.LocalID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted transaction id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *models.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET amount=?, date=?, description=?, type=?,
			account_id=?, category_id=?, user_id=?, deleted=?,
			last_modified=?, sync_status=?, server_hash=?, last_sync_time=?
		WHERE id=?`,
		t.Amount, t.Date, t.Description, t.Type,
		t.AccountID, t.CategoryID, t.UserID, boolToInt(t.Deleted),
		t.LastModified, int(t.SyncStatus), t.ServerHash, t.LastSyncTime, t.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
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

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64, ts int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted=1, last_modified=?, sync_status=? WHERE id=? AND deleted=0`,
		ts, int(models.SyncStatusNeedsSync), id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
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

func (r *SQLiteRepository) UpsertByUUID(ctx context.Context, t *models.Transaction) (bool, error) {
	existing, err := r.GetByUUID(ctx, t.UUID)
	if errors.Is(err, common.ErrNotFound) {
		if err := r.Create(ctx, t); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.DataHash() == t.DataHash() {
		if existing.ServerHash != t.ServerHash || existing.SyncStatus != t.SyncStatus {
			existing.ServerHash = t.ServerHash
			existing.SyncStatus = t.SyncStatus
			existing.LastSyncTime = t.LastSyncTime
			if err := r.Update(ctx, existing); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	t.LocalID = existing.LocalID
	if t.UserID == 0 {
		t.UserID = existing.UserID
	}
	if err := r.Update(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepository) ListPendingSync(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id=? AND sync_status IN (?, ?) ORDER BY id`,
		userID, int(models.SyncStatusLocalOnly), int(models.SyncStatusNeedsSync))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending transactions: %w", err)
	}
	defer rows.Close()

	var pending []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, localID int64, ts int64, serverHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status=?, last_sync_time=?, server_hash=? WHERE id=?`,
		int(models.SyncStatusSynced), ts, serverHash, localID)
	if err != nil {
		return fmt.Errorf("failed to mark transaction synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkConflict(ctx context.Context, uuid string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status=? WHERE uuid=?`,
		int(models.SyncStatusConflict), uuid)
	if err != nil {
		return fmt.Errorf("failed to mark transaction conflicted: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
