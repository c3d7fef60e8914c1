// Package tcp provides the TCP socket transport adapter: one
// newline-delimited-JSON connection per accepted socket.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/turbomcp/turbomcp/internal/domain/transport"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Listener accepts TCP connections and wraps each as a transport.Conn.
type Listener struct {
	ln net.Listener
}

// Listen starts listening on addr (host:port).
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
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
			return nil, fmt.Errorf("accept tcp connection: %w", res.err)
		}
		return newConn(res.conn), nil
	}
}

func (l *Listener) Addr() string { return l.ln.Addr().String() }

func (l *Listener) Close() error { return l.ln.Close() }

// Conn wraps one accepted net.Conn.
type Conn struct {
	transport.StateTracker
	raw   net.Conn
	codec *transport.LineCodec
	once  sync.Once
}

func newConn(raw net.Conn) *Conn {
	c := &Conn{raw: raw, codec: transport.NewLineCodec(raw, raw)}
	c.SetState(transport.StateOpen)
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

func (c *Conn) RemoteAddr() string { return c.raw.RemoteAddr().String() }

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
