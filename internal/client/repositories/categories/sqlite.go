package categories

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

const categoryColumns = `id, uuid, name, type, color_hex,
	last_modified, sync_status, server_hash, last_sync_time`

func scanCategory(row interface{ Scan(dest ...any) error }) (*models.Category, error) {
	c := &models.Category{}
	var status int
	err := row.Scan(&c.LocalID, &c.UUID, &c.Name, &c.Type, &c.ColorHex,
		&c.LastModified, &status, &c.ServerHash, &c.LastSyncTime)
	if err != nil {
		return nil, err
	}
	c.SyncStatus = models.SyncStatus(status)
	return c, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id=?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE uuid=?`, uuid)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Category, error) {
	return r.list(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
}

func (r *SQLiteRepository) ListByType(ctx context.Context, categoryType string) ([]*models.Category, error) {
	return r.list(ctx, `SELECT `+categoryColumns+` FROM categories WHERE type=? ORDER BY id`, categoryType)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, c *models.Category) error {
	c.EnsureUUID()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (uuid, name, type, color_hex,
			last_modified, sync_status, server_hash, last_sync_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID, c.Name, c.Type, c.ColorHex,
		c.LastModified, int(c.SyncStatus), c.ServerHash, c.LastSyncTime)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	c.LocalID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted category id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, c *models.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name=?, type=?, color_hex=?,
			last_modified=?, sync_status=?, server_hash=?, last_sync_time=?
		WHERE id=?`,
		c.Name, c.Type, c.ColorHex,
		c.LastModified, int(c.SyncStatus), c.ServerHash, c.LastSyncTime, c.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
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

func (r *SQLiteRepository) UpsertByUUID(ctx context.Context, c *models.Category) (bool, error) {
	existing, err := r.GetByUUID(ctx, c.UUID)
	if errors.Is(err, common.ErrNotFound) {
		if err := r.Create(ctx, c); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.DataHash() == c.DataHash() {
		if existing.ServerHash != c.ServerHash || existing.SyncStatus != c.SyncStatus {
			existing.ServerHash = c.ServerHash
			existing.SyncStatus = c.SyncStatus
			existing.LastSyncTime = c.LastSyncTime
			if err := r.Update(ctx, existing); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	c.LocalID = existing.LocalID
	if err := r.Update(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepository) ListPendingSync(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE sync_status IN (?, ?) ORDER BY id`,
		int(models.SyncStatusLocalOnly), int(models.SyncStatusNeedsSync))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending categories: %w", err)
	}
	defer rows.Close()

	var pending []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, localID int64, ts int64, serverHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE categories SET sync_status=?, last_sync_time=?, server_hash=? WHERE id=?`,
		int(models.SyncStatusSynced), ts, serverHash, localID)
	if err != nil {
		return fmt.Errorf("failed to mark category synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkConflict(ctx context.Context, uuid string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE categories SET sync_status=? WHERE uuid=?`,
		int(models.SyncStatusConflict), uuid)
	if err != nil {
		return fmt.Errorf("failed to mark category conflicted: %w", err)
	}
	return nil
}
