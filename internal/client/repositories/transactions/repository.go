package transactions

import (
	"context"

	"github.com/finanzaapp/finsync/internal/models"
)

// Repository describes CRUD and sync operations for Transaction rows in
// the local store. Deletion is always a soft delete so the tombstone can
// propagate through sync.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Transaction, error)

	// List returns all live (non-deleted) transactions of one user, newest
	// date first.
	List(ctx context.Context, userID int64) ([]*models.Transaction, error)
	ListByPeriod(ctx context.Context, userID int64, from, to int64) ([]*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*models.Transaction, error)

	Create(ctx context.Context, t *models.Transaction) error
	Update(ctx context.Context, t *models.Transaction) error

	// SoftDelete tombstones a transaction and queues it for upload.
	SoftDelete(ctx context.Context, id int64, ts int64) error

	UpsertByUUID(ctx context.Context, t *models.Transaction) (applied bool, err error)
	ListPendingSync(ctx context.Context, userID int64) ([]*models.Transaction, error)
	MarkSynced(ctx context.Context, localID int64, ts int64, serverHash string) error
	MarkConflict(ctx context.Context, uuid string) error
}
