// Package cli implements the interactive finsync client: an offline-first
// REPL over the local sqlite store, with explicit sync against the server.
package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/finanzaapp/finsync/internal/client/config"
	"github.com/finanzaapp/finsync/internal/client/localdb"
	"github.com/finanzaapp/finsync/internal/client/session"
	"github.com/finanzaapp/finsync/internal/client/sync"
	"github.com/finanzaapp/finsync/internal/client/transport"
	"github.com/finanzaapp/finsync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config       *config.Config
	db           *localdb.Database
	transport    transport.Client
	session      *session.Session
	orchestrator *sync.Orchestrator
	strategy     sync.Strategy
	logger       logging.Logger
	Mode         Mode
	reader       *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	db, err := localdb.Open(ctx, c.DatabaseDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	strategy, err := sync.ParseStrategy(c.ConflictStrategy)
	if err != nil {
		db.Close()
		return nil, err
	}

	sl := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger := logging.NewSlogLogger(sl)

	tc := transport.NewTCPClient(c.ServerEndpointAddr, c.RequestTimeout)

	return &App{
		config:       c,
		db:           db,
		transport:    tc,
		session:      session.New(tc),
		orchestrator: sync.NewOrchestrator(db, tc, logger, c.OverlapWindow),
		strategy:     strategy,
		logger:       logger,
		Mode:         ModeOffline,
		reader:       bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.transport.Close()
	defer a.db.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) isLoggedIn() bool {
	return a.session.User() != nil
}

func (a *App) status() string {
	if u := a.session.User(); u != nil {
		return u.Email + " (" + string(a.Mode) + ")"
	}
	return string(a.Mode)
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

// StartOnlineStatusWatcher probes server reachability on a ticker and
// flips the mode indicator accordingly.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.transport.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
