package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs. The real
// App type satisfies it; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ListAccounts(ctx context.Context) error
	AddAccount(ctx context.Context) error
	ListCategories(ctx context.Context) error
	AddCategory(ctx context.Context) error
	ListTransactions(ctx context.Context) error
	AddTransaction(ctx context.Context) error
	DeleteTransaction(ctx context.Context) error
	Sync(ctx context.Context) error
	FullSync(ctx context.Context) error
	Dashboard(ctx context.Context) error
}

// runREPL reads commands from the scanner and dispatches to a. Errors are
// reported by the handlers themselves; the loop only cares about I/O. It
// exits on EOF or "exit"/"quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("finsync %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: accounts, addaccount, categories, addcategory, (l)ist, addtx, deltx, sync, fullsync, dashboard, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "accounts":
			_ = a.ListAccounts(ctx)

		case "addaccount":
			_ = a.AddAccount(ctx)

		case "categories":
			_ = a.ListCategories(ctx)

		case "addcategory":
			_ = a.AddCategory(ctx)

		case "l", "list":
			_ = a.ListTransactions(ctx)

		case "addtx":
			_ = a.AddTransaction(ctx)

		case "deltx":
			_ = a.DeleteTransaction(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "fullsync":
			_ = a.FullSync(ctx)

		case "dashboard":
			_ = a.Dashboard(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
