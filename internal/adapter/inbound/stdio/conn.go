// Package stdio provides the stdio transport adapter: the server's
// most basic inbound surface, reading/writing newline-delimited JSON
// over the process's own stdin/stdout.
package stdio

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/turbomcp/turbomcp/internal/domain/transport"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Conn is the single implicit connection a stdio-mode server has: the
// process's own stdin/stdout. There is no Listener for stdio because
// there is exactly one peer for the life of the process.
type Conn struct {
	transport.StateTracker
	codec *transport.LineCodec
	once  sync.Once
}

// New wraps os.Stdin/os.Stdout as a transport.Conn. Exposed as a
// constructor taking explicit reader/writer (rather than hardcoding
// os.Stdin/os.Stdout) so tests can substitute pipes.
func New(in io.Reader, out io.Writer) *Conn {
	c := &Conn{codec: transport.NewLineCodec(in, out)}
	c.SetState(transport.StateOpen)
	return c
}

// NewStdio wraps the process's real stdin/stdout.
func NewStdio() *Conn {
	return New(os.Stdin, os.Stdout)
}

func (c *Conn) ReadEnvelope(ctx context.Context) (*mcp.Envelope, error) {
	if c.State() == transport.StateClosed {
		return nil, transport.ErrClosed
	}
	env, err := c.codec.ReadEnvelope(ctx)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Conn) WriteEnvelope(ctx context.Context, env *mcp.Envelope) error {
	if c.State() == transport.StateClosed {
		return transport.ErrClosed
	}
	return c.codec.WriteEnvelope(ctx, env)
}

// RemoteAddr is always "local": stdio has no network peer, so every
// stdio connection shares one identity for rate limiting and session
// binding purposes.
func (c *Conn) RemoteAddr() string { return "local" }

func (c *Conn) Close() error {
	c.once.Do(func() {
		c.SetState(transport.StateClosed)
	})
	return nil
}

var _ transport.Conn = (*Conn)(nil)
