package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/models"
	"github.com/finanzaapp/finsync/internal/server/store/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// PostgresStore implements Store on PostgreSQL via the pgx stdlib driver.
// The schema is managed by embedded goose migrations.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if _, err := s.UserByEmail(ctx, u.Email); err == nil {
		return 0, common.ErrUserExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (uuid, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.UUID, u.Name, u.Email, u.PasswordHash, u.CreatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, uuid, name, email, password_hash, created_at
		 FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, uuid, name, email, password_hash, created_at
		 FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.LocalID, &u.UUID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id int64, name, email string) error {
	return s.exec1(ctx, `UPDATE users SET name = $1, email = $2 WHERE id = $3`, name, email, id)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.exec1(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
}

// exec1 runs a statement that must touch exactly one row.
func (s *PostgresStore) exec1(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

const accountColumns = `id, uuid, name, type, initial_balance, user_id, last_modified`

func (s *PostgresStore) ListAccounts(ctx context.Context, userID int64) ([]*models.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *PostgresStore) ListAccountsSince(ctx context.Context, userID, since int64) ([]*models.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE user_id = $1 AND last_modified >= $2 ORDER BY id`, userID, since)
}

func (s *PostgresStore) queryAccounts(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.LocalID, &a.UUID, &a.Name, &a.Type, &a.InitialBalance, &a.UserID, &a.LastModified); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AccountByUUID(ctx context.Context, userID int64, uuid string) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE uuid = $1 AND user_id = $2`, uuid, userID).
		Scan(&a.LocalID, &a.UUID, &a.Name, &a.Type, &a.InitialBalance, &a.UserID, &a.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, a *models.Account) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (uuid, name, type, initial_balance, user_id, last_modified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (uuid) DO UPDATE SET
		   name = excluded.name,
		   type = excluded.type,
		   initial_balance = excluded.initial_balance,
		   last_modified = excluded.last_modified
		 RETURNING id`,
		a.UUID, a.Name, a.Type, a.InitialBalance, a.UserID, a.LastModified).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, userID int64, uuid string) error {
	return s.exec1(ctx, `DELETE FROM accounts WHERE uuid = $1 AND user_id = $2`, uuid, userID)
}

const categoryColumns = `id, uuid, name, type, color_hex, last_modified`

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY id`)
}

func (s *PostgresStore) ListCategoriesByType(ctx context.Context, typ string) ([]*models.Category, error) {
	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE type = $1 ORDER BY id`, typ)
}

func (s *PostgresStore) ListCategoriesSince(ctx context.Context, since int64) ([]*models.Category, error) {
	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE last_modified >= $1 ORDER BY id`, since)
}

func (s *PostgresStore) queryCategories(ctx context.Context, query string, args ...any) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.LocalID, &c.UUID, &c.Name, &c.Type, &c.ColorHex, &c.LastModified); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CategoryByUUID(ctx context.Context, uuid string) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE uuid = $1`, uuid).
		Scan(&c.LocalID, &c.UUID, &c.Name, &c.Type, &c.ColorHex, &c.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) SaveCategory(ctx context.Context, c *models.Category) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (uuid, name, type, color_hex, last_modified)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (uuid) DO UPDATE SET
		   name = excluded.name,
		   type = excluded.type,
		   color_hex = excluded.color_hex,
		   last_modified = excluded.last_modified
		 RETURNING id`,
		c.UUID, c.Name, c.Type, c.ColorHex, c.LastModified).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, uuid string) error {
	return s.exec1(ctx, `DELETE FROM categories WHERE uuid = $1`, uuid)
}

const transactionColumns = `id, uuid, amount, date, description, type, account_id, category_id, user_id, deleted, last_modified`

func (s *PostgresStore) ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 AND NOT deleted ORDER BY date DESC, id`, userID)
}

func (s *PostgresStore) ListTransactionsByPeriod(ctx context.Context, userID, from, to int64) ([]*models.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 AND NOT deleted AND date BETWEEN $2 AND $3
		 ORDER BY date DESC, id`, userID, from, to)
}

func (s *PostgresStore) ListTransactionsByAccount(ctx context.Context, userID, accountID int64) ([]*models.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 AND NOT deleted AND account_id = $2
		 ORDER BY date DESC, id`, userID, accountID)
}

func (s *PostgresStore) ListTransactionsSince(ctx context.Context, userID, since int64) ([]*models.Transaction, error) {
	// Tombstones are included so deletions propagate to clients.
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 AND last_modified >= $2 ORDER BY id`, userID, since)
}

func (s *PostgresStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.LocalID, &t.UUID, &t.Amount, &t.Date, &t.Description, &t.Type,
			&t.AccountID, &t.CategoryID, &t.UserID, &t.Deleted, &t.LastModified); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TransactionByUUID(ctx context.Context, userID int64, uuid string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE uuid = $1 AND user_id = $2`, uuid, userID).
		Scan(&t.LocalID, &t.UUID, &t.Amount, &t.Date, &t.Description, &t.Type,
			&t.AccountID, &t.CategoryID, &t.UserID, &t.Deleted, &t.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) SaveTransaction(ctx context.Context, t *models.Transaction) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO transactions (uuid, amount, date, description, type, account_id, category_id, user_id, deleted, last_modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (uuid) DO UPDATE SET
		   amount = excluded.amount,
		   date = excluded.date,
		   description = excluded.description,
		   type = excluded.type,
		   account_id = excluded.account_id,
		   category_id = excluded.category_id,
		   deleted = excluded.deleted,
		   last_modified = excluded.last_modified
		 RETURNING id`,
		t.UUID, t.Amount, t.Date, t.Description, t.Type,
		t.AccountID, t.CategoryID, t.UserID, t.Deleted, t.LastModified).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) Dashboard(ctx context.Context, userID int64) (balance, income, expense float64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(initial_balance), 0) FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, 0, 0, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(amount) FILTER (WHERE type = $2), 0),
		   COALESCE(SUM(amount) FILTER (WHERE type = $3), 0)
		 FROM transactions WHERE user_id = $1 AND NOT deleted`,
		userID, models.TransactionTypeIncome, models.TransactionTypeExpense).Scan(&income, &expense)
	if err != nil {
		return 0, 0, 0, err
	}
	return balance + income - expense, income, expense, nil
}
