package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/finanzaapp/finsync/internal/logging"
	"github.com/finanzaapp/finsync/internal/server/store"
)

// TCPServer accepts line-protocol connections and serves each one on its
// own goroutine with its own handler (and therefore its own session).
type TCPServer struct {
	addr        string
	store       store.Store
	log         logging.Logger
	idleTimeout time.Duration
	now         func() int64
}

func NewTCPServer(addr string, st store.Store, log logging.Logger, idleTimeout time.Duration) *TCPServer {
	return &TCPServer{
		addr:        addr,
		store:       st,
		log:         log,
		idleTimeout: idleTimeout,
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

// Run listens on the configured address until ctx is cancelled, then
// closes the listener and waits for in-flight connections to drain.
func (s *TCPServer) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.log.Info(ctx, "server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn(ctx, "accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}

	wg.Wait()
	s.log.Info(ctx, "server stopped")
	return nil
}

func (s *TCPServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.log.Debug(ctx, "connection opened", "remote", remote)

	h := newHandler(s.store, s.log.With("remote", remote), s.now)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(conn)

	for {
		if ctx.Err() != nil {
			return
		}
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				s.log.Debug(ctx, "connection closed", "remote", remote, "error", err)
			}
			return
		}

		resp := h.Handle(ctx, scanner.Text())
		if _, err := writer.WriteString(resp + "\n"); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}
