package accounts

import (
	"context"

	"github.com/finanzaapp/finsync/internal/models"
)

// Repository describes CRUD and sync operations for Account rows in the
// local store. Implementations are backed by SQLite.
type Repository interface {
	// GetByID returns an account by local id.
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// GetByUUID returns an account by its sync key.
	GetByUUID(ctx context.Context, uuid string) (*models.Account, error)

	// List returns all accounts of one user.
	List(ctx context.Context, userID int64) ([]*models.Account, error)

	// Create inserts a new account and fills in LocalID.
	Create(ctx context.Context, a *models.Account) error

	// Update rewrites an existing account by local id. The uuid column is
	// never touched.
	Update(ctx context.Context, a *models.Account) error

	// Delete removes an account by local id.
	Delete(ctx context.Context, id int64) error

	// UpsertByUUID applies a server copy keyed by uuid. It reports
	// applied=false when the stored content already matches (an idempotent
	// duplicate), and never reassigns the uuid of an existing row.
	UpsertByUUID(ctx context.Context, a *models.Account) (applied bool, err error)

	// ListPendingSync returns accounts awaiting upload (LocalOnly or
	// NeedsSync) in local-id order.
	ListPendingSync(ctx context.Context, userID int64) ([]*models.Account, error)

	// MarkSynced acknowledges a successful round trip for one row and
	// records the digest the server agreed on.
	MarkSynced(ctx context.Context, localID int64, ts int64, serverHash string) error

	// MarkConflict flags a row as divergent from the server.
	MarkConflict(ctx context.Context, uuid string) error
}
