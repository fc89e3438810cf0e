// Package server runs the authoritative finsync server: it selects the
// storage backend, listens for TCP line-protocol connections and shuts
// down gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/finanzaapp/finsync/internal/logging"
	"github.com/finanzaapp/finsync/internal/server/config"
	"github.com/finanzaapp/finsync/internal/server/store"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  store.Store
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	var (
		st  store.Store
		err error
	)
	if cfg.DatabaseDSN == "" {
		st = store.NewMemoryStore()
	} else {
		st, err = store.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	return &App{config: cfg, logger: logger, store: st}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server...")

	app.initSignalHandler(cancelFunc)

	s := NewTCPServer(app.config.EndpointAddr, app.store, app.logger, app.config.IdleTimeout)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
