// Package store defines the server's persistence interface and its two
// implementations: an in-memory store for tests and development, and a
// PostgreSQL store for production.
package store

import (
	"context"

	"github.com/finanzaapp/finsync/internal/models"
)

// Store is the authoritative persistence surface. Entities are keyed by
// uuid for sync purposes; LocalID is the store's own surrogate key.
// Not-found conditions return common.ErrNotFound; duplicate registrations
// return common.ErrUserExists.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id int64, name, email string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error

	// Accounts, scoped per user.
	ListAccounts(ctx context.Context, userID int64) ([]*models.Account, error)
	AccountByUUID(ctx context.Context, userID int64, uuid string) (*models.Account, error)
	SaveAccount(ctx context.Context, a *models.Account) (int64, error)
	DeleteAccount(ctx context.Context, userID int64, uuid string) error
	ListAccountsSince(ctx context.Context, userID, since int64) ([]*models.Account, error)

	// Categories, shared across users.
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListCategoriesByType(ctx context.Context, typ string) ([]*models.Category, error)
	CategoryByUUID(ctx context.Context, uuid string) (*models.Category, error)
	SaveCategory(ctx context.Context, c *models.Category) (int64, error)
	DeleteCategory(ctx context.Context, uuid string) error
	ListCategoriesSince(ctx context.Context, since int64) ([]*models.Category, error)

	// Transactions, scoped per user. The plain lists exclude tombstones;
	// ListTransactionsSince includes them so deletions propagate.
	ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error)
	ListTransactionsByPeriod(ctx context.Context, userID, from, to int64) ([]*models.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, userID, accountID int64) ([]*models.Transaction, error)
	TransactionByUUID(ctx context.Context, userID int64, uuid string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, t *models.Transaction) (int64, error)
	ListTransactionsSince(ctx context.Context, userID, since int64) ([]*models.Transaction, error)

	// Dashboard returns the aggregate balance, income and expense over
	// the user's live transactions.
	Dashboard(ctx context.Context, userID int64) (balance, income, expense float64, err error)

	Close() error
}
