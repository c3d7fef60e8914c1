// Package unixsock provides the Unix domain socket transport adapter.
package unixsock

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/turbomcp/turbomcp/internal/domain/transport"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Listener accepts connections on a Unix domain socket.
type Listener struct {
	ln                   net.Listener
	path                 string
	trustPeerCredentials bool
}

// Listen creates and binds a Unix domain socket at path. If the path
// already exists as a stale socket file from a previous crashed run, it
// is removed before binding. trustPeerCredentials gates whether
// accepted connections look up SO_PEERCRED (see peercred_linux.go); default
// false per the resolved "Unix peer credentials" open question.
func Listen(path string, trustPeerCredentials bool) (*Listener, error) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket %s: %w", path, err)
	}
	return &Listener{ln: ln, path: path, trustPeerCredentials: trustPeerCredentials}, nil
}

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan acceptResult, 1)
	go func() {
		conn, err := l.ln.Accept()
		resultCh <- acceptResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("accept unix connection: %w", res.err)
		}
		return newConn(res.conn, l.trustPeerCredentials), nil
	}
}

func (l *Listener) Addr() string { return l.path }

func (l *Listener) Close() error {
	err := l.ln.Close()
	_ = os.Remove(l.path)
	return err
}

// Conn wraps one accepted Unix domain socket connection.
type Conn struct {
	transport.StateTracker
	raw      net.Conn
	codec    *transport.LineCodec
	once     sync.Once
	peerUID  int
	peerGID  int
	peerPID  int
	havePeer bool
}

func newConn(raw net.Conn, trustPeerCredentials bool) *Conn {
	c := &Conn{raw: raw, codec: transport.NewLineCodec(raw, raw)}
	c.SetState(transport.StateOpen)
	if trustPeerCredentials {
		if uid, gid, pid, ok := peerCredentials(raw); ok {
			c.peerUID, c.peerGID, c.peerPID, c.havePeer = uid, gid, pid, true
		}
	}
	return c
}

func (c *Conn) ReadEnvelope(ctx context.Context) (*mcp.Envelope, error) {
	if c.State() == transport.StateClosed {
		return nil, transport.ErrClosed
	}
	return c.codec.ReadEnvelope(ctx)
}

func (c *Conn) WriteEnvelope(ctx context.Context, env *mcp.Envelope) error {
	if c.State() == transport.StateClosed {
		return transport.ErrClosed
	}
	return c.codec.WriteEnvelope(ctx, env)
}

// RemoteAddr returns the peer's credential-derived identity
// ("uid:<n>") when trust_peer_credentials is enabled and the lookup
// succeeded, else the Unix socket peer address, or "local" when that
// address is empty (the usual case for an unnamed client socket).
func (c *Conn) RemoteAddr() string {
	if c.havePeer {
		return fmt.Sprintf("uid:%d", c.peerUID)
	}
	if addr := c.raw.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "local"
}

// PeerCredentials returns the peer's uid/gid/pid and whether they were
// resolved. Only populated when the listener was created with
// trustPeerCredentials=true.
func (c *Conn) PeerCredentials() (uid, gid, pid int, ok bool) {
	return c.peerUID, c.peerGID, c.peerPID, c.havePeer
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.SetState(transport.StateClosing)
		err = c.raw.Close()
		c.SetState(transport.StateClosed)
	})
	return err
}

var (
	_ transport.Listener = (*Listener)(nil)
	_ transport.Conn     = (*Conn)(nil)
)
