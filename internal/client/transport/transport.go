// Package transport implements the client side of the line protocol: one
// command out, one response line back, over a reused TCP connection.
//
// The transport enforces a per-call deadline and maps failures to a
// *transport.Error wrapping a common sentinel. It never retries; retry
// policy belongs to the sync orchestrator.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/protocol"
)

// DefaultTimeout bounds one command round trip.
const DefaultTimeout = 30 * time.Second

// Client sends one protocol command and returns the decoded response.
type Client interface {
	Send(ctx context.Context, command string) (protocol.Response, error)
	Ping(ctx context.Context) error
	Close() error
}

// Error is returned for any connectivity failure. It wraps
// common.ErrUnavailable or common.ErrTimeout, so callers can classify with
// errors.Is.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// TCPClient is the production Client. It dials lazily, reuses the
// connection across calls and serializes concurrent senders so that
// request/response pairs can never interleave on the wire.
type TCPClient struct {
	addr    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

func NewTCPClient(addr string, timeout time.Duration) *TCPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCPClient{addr: addr, timeout: timeout}
}

// Send writes one command line and reads exactly one response line. Any
// I/O failure discards the connection so the next call starts clean; a
// timeout can never leave a half-read response behind.
func (c *TCPClient) Send(ctx context.Context, command string) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if c.conn == nil {
		dialer := net.Dialer{Timeout: c.timeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			return protocol.Response{}, &Error{Op: "dial", Err: fmt.Errorf("%w: %v", common.ErrUnavailable, err)}
		}
		c.conn = conn
		c.reader = bufio.NewReader(conn)
	}

	if err := c.conn.SetDeadline(deadline); err != nil {
		c.drop()
		return protocol.Response{}, &Error{Op: "deadline", Err: fmt.Errorf("%w: %v", common.ErrUnavailable, err)}
	}

	if _, err := c.conn.Write([]byte(command + "\n")); err != nil {
		c.drop()
		return protocol.Response{}, &Error{Op: "write", Err: classify(err)}
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.drop()
		return protocol.Response{}, &Error{Op: "read", Err: classify(err)}
	}

	resp, err := protocol.ParseResponse(line)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return resp, nil
}

// Ping checks reachability with a SYNC_STATUS round trip.
func (c *TCPClient) Ping(ctx context.Context) error {
	resp, err := c.Send(ctx, protocol.BuildCommand(protocol.CmdSyncStatus))
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: ping status %s", common.ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func (c *TCPClient) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
}

func classify(err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
}
