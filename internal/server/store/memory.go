package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/models"
)

// MemoryStore keeps everything in maps behind one mutex. It backs tests
// and development runs; production uses PostgresStore.
type MemoryStore struct {
	mu sync.RWMutex

	nextID       int64
	users        map[int64]*models.User
	accounts     map[string]*models.Account     // by uuid
	categories   map[string]*models.Category    // by uuid
	transactions map[string]*models.Transaction // by uuid
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*models.User),
		accounts:     make(map[string]*models.Account),
		categories:   make(map[string]*models.Category),
		transactions: make(map[string]*models.Transaction),
	}
}

func (s *MemoryStore) nextLocalID() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return 0, common.ErrUserExists
		}
	}
	cp := *u
	cp.LocalID = s.nextLocalID()
	s.users[cp.LocalID] = &cp
	return cp.LocalID, nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *MemoryStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) UpdateUserProfile(_ context.Context, id int64, name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Name = name
	u.Email = email
	return nil
}

func (s *MemoryStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, userID int64) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByLocalID(out, func(a *models.Account) int64 { return a.LocalID })
	return out, nil
}

func (s *MemoryStore) AccountByUUID(_ context.Context, userID int64, uuid string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[uuid]
	if !ok || a.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, a *models.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	if existing, ok := s.accounts[cp.UUID]; ok {
		cp.LocalID = existing.LocalID
	} else {
		cp.LocalID = s.nextLocalID()
	}
	s.accounts[cp.UUID] = &cp
	return cp.LocalID, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, userID int64, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[uuid]
	if !ok || a.UserID != userID {
		return common.ErrNotFound
	}
	delete(s.accounts, uuid)
	return nil
}

func (s *MemoryStore) ListAccountsSince(_ context.Context, userID, since int64) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.LastModified >= since {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByLocalID(out, func(a *models.Account) int64 { return a.LocalID })
	return out, nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Category
	for _, c := range s.categories {
		cp := *c
		out = append(out, &cp)
	}
	sortByLocalID(out, func(c *models.Category) int64 { return c.LocalID })
	return out, nil
}

func (s *MemoryStore) ListCategoriesByType(_ context.Context, typ string) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Category
	for _, c := range s.categories {
		if c.Type == typ {
			cp := *c
			out = append(out, &cp)
		}
	}
	sortByLocalID(out, func(c *models.Category) int64 { return c.LocalID })
	return out, nil
}

func (s *MemoryStore) CategoryByUUID(_ context.Context, uuid string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[uuid]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) SaveCategory(_ context.Context, c *models.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	if existing, ok := s.categories[cp.UUID]; ok {
		cp.LocalID = existing.LocalID
	} else {
		cp.LocalID = s.nextLocalID()
	}
	s.categories[cp.UUID] = &cp
	return cp.LocalID, nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[uuid]; !ok {
		return common.ErrNotFound
	}
	delete(s.categories, uuid)
	return nil
}

func (s *MemoryStore) ListCategoriesSince(_ context.Context, since int64) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Category
	for _, c := range s.categories {
		if c.LastModified >= since {
			cp := *c
			out = append(out, &cp)
		}
	}
	sortByLocalID(out, func(c *models.Category) int64 { return c.LocalID })
	return out, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID int64) ([]*models.Transaction, error) {
	return s.listTransactions(userID, func(t *models.Transaction) bool {
		return !t.Deleted
	})
}

func (s *MemoryStore) ListTransactionsByPeriod(_ context.Context, userID, from, to int64) ([]*models.Transaction, error) {
	return s.listTransactions(userID, func(t *models.Transaction) bool {
		return !t.Deleted && t.Date >= from && t.Date <= to
	})
}

func (s *MemoryStore) ListTransactionsByAccount(_ context.Context, userID, accountID int64) ([]*models.Transaction, error) {
	return s.listTransactions(userID, func(t *models.Transaction) bool {
		return !t.Deleted && t.AccountID == accountID
	})
}

func (s *MemoryStore) listTransactions(userID int64, keep func(*models.Transaction) bool) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID && keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].LocalID < out[j].LocalID
	})
	return out, nil
}

func (s *MemoryStore) TransactionByUUID(_ context.Context, userID int64, uuid string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[uuid]
	if !ok || t.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) SaveTransaction(_ context.Context, t *models.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	if existing, ok := s.transactions[cp.UUID]; ok {
		cp.LocalID = existing.LocalID
	} else {
		cp.LocalID = s.nextLocalID()
	}
	s.transactions[cp.UUID] = &cp
	return cp.LocalID, nil
}

func (s *MemoryStore) ListTransactionsSince(_ context.Context, userID, since int64) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID && t.LastModified >= since {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortByLocalID(out, func(t *models.Transaction) int64 { return t.LocalID })
	return out, nil
}

func (s *MemoryStore) Dashboard(_ context.Context, userID int64) (balance, income, expense float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.UserID == userID {
			balance += a.InitialBalance
		}
	}
	for _, t := range s.transactions {
		if t.UserID != userID || t.Deleted {
			continue
		}
		switch t.Type {
		case models.TransactionTypeIncome:
			income += t.Amount
			balance += t.Amount
		case models.TransactionTypeExpense:
			expense += t.Amount
			balance -= t.Amount
		}
	}
	return balance, income, expense, nil
}

func (s *MemoryStore) Close() error { return nil }

// sortByLocalID keeps map iteration nondeterminism out of list payloads.
func sortByLocalID[T any](items []*T, id func(*T) int64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
