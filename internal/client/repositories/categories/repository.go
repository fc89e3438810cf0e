package categories

import (
	"context"

	"github.com/finanzaapp/finsync/internal/models"
)

// Repository describes CRUD and sync operations for Category rows in the
// local store. Categories are shared across users, so the sync queries
// take no user filter.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	ListByType(ctx context.Context, categoryType string) ([]*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id int64) error

	UpsertByUUID(ctx context.Context, c *models.Category) (applied bool, err error)
	ListPendingSync(ctx context.Context) ([]*models.Category, error)
	MarkSynced(ctx context.Context, localID int64, ts int64, serverHash string) error
	MarkConflict(ctx context.Context, uuid string) error
}
