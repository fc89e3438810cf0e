package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/finanzaapp/finsync/internal/client/sync"
	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/models"
)

var errNotLoggedIn = errors.New("not logged in")

func (a *App) requireLogin() (int64, error) {
	u := a.session.User()
	if u == nil {
		fmt.Println("Please login first")
		return 0, errNotLoggedIn
	}
	return u.UserID, nil
}

func (a *App) Register(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	pw, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	p, err := a.session.Register(ctx, name, email, string(pw))
	if err != nil {
		if errors.Is(err, common.ErrUserExists) {
			fmt.Println("That email is already registered")
			return err
		}
		fmt.Println("Registration failed:", err)
		return err
	}
	fmt.Printf("Registered as %s (user %d)\n", p.Email, p.UserID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	pw, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	p, err := a.session.Login(ctx, email, string(pw))
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			fmt.Println("Invalid email or password")
			return err
		}
		fmt.Println("Login failed:", err)
		return err
	}
	fmt.Printf("Welcome back, %s\n", p.Name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		fmt.Println("Logout failed:", err)
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *App) ListAccounts(ctx context.Context) error {
	userID, err := a.requireLogin()
	if err != nil {
		return err
	}
	list, err := a.db.Accounts.List(ctx, userID)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if len(list) == 0 {
		fmt.Println("No accounts yet")
		return nil
	}
	for _, acc := range list {
		fmt.Printf("%4d  %-20s %-10s %12.2f  [%s]\n",
			acc.LocalID, acc.Name, acc.Type, acc.InitialBalance, acc.SyncStatus)
	}
	return nil
}

func (a *App) AddAccount(ctx context.Context) error {
	userID, err := a.requireLogin()
	if err != nil {
		return err
	}
	name, err := GetSimpleText(a.reader, "Account name", os.Stdout)
	if err != nil {
		return err
	}
	typ, err := GetSimpleText(a.reader, "Account type (checking/savings/wallet...)", os.Stdout)
	if err != nil {
		return err
	}
	balanceStr, err := GetSimpleText(a.reader, "Initial balance", os.Stdout)
	if err != nil {
		return err
	}
	balance, err := strconv.ParseFloat(balanceStr, 64)
	if err != nil {
		fmt.Println("Bad balance:", err)
		return err
	}

	acc := &models.Account{
		Name:           name,
		Type:           typ,
		InitialBalance: balance,
		UserID:         userID,
		LastModified:   time.Now().UnixMilli(),
		SyncStatus:     models.SyncStatusLocalOnly,
	}
	acc.EnsureUUID()
	if err := a.db.Accounts.Create(ctx, acc); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Printf("Account %d created (will upload on next sync)\n", acc.LocalID)
	return nil
}

func (a *App) ListCategories(ctx context.Context) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	list, err := a.db.Categories.List(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if len(list) == 0 {
		fmt.Println("No categories yet")
		return nil
	}
	for _, c := range list {
		fmt.Printf("%4d  %-20s %-8s %-8s [%s]\n", c.LocalID, c.Name, c.Type, c.ColorHex, c.SyncStatus)
	}
	return nil
}

func (a *App) AddCategory(ctx context.Context) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	name, err := GetSimpleText(a.reader, "Category name", os.Stdout)
	if err != nil {
		return err
	}
	typ, err := GetSimpleText(a.reader, "Type (receita/despesa)", os.Stdout)
	if err != nil {
		return err
	}
	if typ != models.CategoryTypeIncome && typ != models.CategoryTypeExpense {
		fmt.Println("Type must be receita or despesa")
		return errors.New("bad category type")
	}
	color, err := GetSimpleText(a.reader, "Color (hex, e.g. #4CAF50)", os.Stdout)
	if err != nil {
		return err
	}

	c := &models.Category{
		Name:         name,
		Type:         typ,
		ColorHex:     color,
		LastModified: time.Now().UnixMilli(),
		SyncStatus:   models.SyncStatusLocalOnly,
	}
	c.EnsureUUID()
	if err := a.db.Categories.Create(ctx, c); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Printf("Category %d created (will upload on next sync)\n", c.LocalID)
	return nil
}

func (a *App) ListTransactions(ctx context.Context) error {
	userID, err := a.requireLogin()
	if err != nil {
		return err
	}
	list, err := a.db.Transactions.List(ctx, userID)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if len(list) == 0 {
		fmt.Println("No transactions yet")
		return nil
	}
	for _, t := range list {
		date := time.UnixMilli(t.Date).Format("2006-01-02")
		fmt.Printf("%4d  %s  %-8s %10.2f  %-30s [%s]\n",
			t.LocalID, date, t.Type, t.Amount, t.Description, t.SyncStatus)
	}
	return nil
}

func (a *App) AddTransaction(ctx context.Context) error {
	userID, err := a.requireLogin()
	if err != nil {
		return err
	}
	amountStr, err := GetSimpleText(a.reader, "Amount", os.Stdout)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		fmt.Println("Bad amount:", err)
		return err
	}
	dateStr, err := GetSimpleText(a.reader, "Date (YYYY-MM-DD, empty for today)", os.Stdout)
	if err != nil {
		return err
	}
	date := time.Now()
	if dateStr != "" {
		date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			fmt.Println("Bad date:", err)
			return err
		}
	}
	description, err := GetSimpleText(a.reader, "Description", os.Stdout)
	if err != nil {
		return err
	}
	typ, err := GetSimpleText(a.reader, "Type (receita/despesa)", os.Stdout)
	if err != nil {
		return err
	}
	if typ != models.TransactionTypeIncome && typ != models.TransactionTypeExpense {
		fmt.Println("Type must be receita or despesa")
		return errors.New("bad transaction type")
	}
	accountStr, err := GetSimpleText(a.reader, "Account id (see 'accounts')", os.Stdout)
	if err != nil {
		return err
	}
	accountID, err := strconv.ParseInt(accountStr, 10, 64)
	if err != nil {
		fmt.Println("Bad account id:", err)
		return err
	}
	categoryStr, err := GetSimpleText(a.reader, "Category id (see 'categories')", os.Stdout)
	if err != nil {
		return err
	}
	categoryID, err := strconv.ParseInt(categoryStr, 10, 64)
	if err != nil {
		fmt.Println("Bad category id:", err)
		return err
	}

	t := &models.Transaction{
		Amount:       amount,
		Date:         date.UnixMilli(),
		Description:  description,
		Type:         typ,
		AccountID:    accountID,
		CategoryID:   categoryID,
		UserID:       userID,
		LastModified: time.Now().UnixMilli(),
		SyncStatus:   models.SyncStatusLocalOnly,
	}
	t.EnsureUUID()
	if err := a.db.Transactions.Create(ctx, t); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Printf("Transaction %d created (will upload on next sync)\n", t.LocalID)
	return nil
}

func (a *App) DeleteTransaction(ctx context.Context) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	idStr, err := GetSimpleText(a.reader, "Transaction id", os.Stdout)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		fmt.Println("Bad id:", err)
		return err
	}
	if err := a.db.Transactions.SoftDelete(ctx, id, time.Now().UnixMilli()); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Deleted (tombstone will propagate on next sync)")
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	return a.runSync(ctx, true)
}

func (a *App) FullSync(ctx context.Context) error {
	return a.runSync(ctx, false)
}

func (a *App) runSync(ctx context.Context, incremental bool) error {
	userID, err := a.requireLogin()
	if err != nil {
		return err
	}

	res, err := a.orchestrator.Run(ctx, userID, sync.Options{
		Incremental: incremental,
		Strategy:    a.strategy,
	})
	if err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			fmt.Println("A sync pass is already running")
			return err
		}
		fmt.Println("Sync failed:", err)
		if res != nil {
			fmt.Println(res.String())
		}
		return err
	}
	fmt.Println("Sync complete:", res.String())
	return nil
}

func (a *App) Dashboard(ctx context.Context) error {
	userID, err := a.requireLogin()
	if err != nil {
		return err
	}
	d, err := a.session.GetDashboard(ctx, userID)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Printf("Balance: %10.2f\nIncome:  %10.2f\nExpense: %10.2f\n", d.Balance, d.Income, d.Expense)
	return nil
}
