package syncstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finanzaapp/finsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) LastSyncTime(ctx context.Context, userID int64) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT last_sync_time FROM sync_state WHERE user_id=?`, userID)
	var ts int64
	err := row.Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to select last sync time: %w", err)
	}
	return ts, nil
}

func (r *SQLiteRepository) SetLastSyncTime(ctx context.Context, userID int64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (user_id, last_sync_time) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_sync_time = MAX(last_sync_time, excluded.last_sync_time)`,
		userID, ts)
	if err != nil {
		return fmt.Errorf("failed to store last sync time: %w", err)
	}
	return nil
}
