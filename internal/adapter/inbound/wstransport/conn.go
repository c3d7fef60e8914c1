package wstransport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/turbomcp/turbomcp/internal/domain/transport"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Default keep-alive tuning, matching spec.md's default 30s ping interval.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultPongWait     = 2 * DefaultPingInterval
	writeWait           = 10 * time.Second
)

// Conn wraps one accepted or dialed gorilla/websocket connection as a
// transport.Conn. Reads and writes are each funneled through a single
// goroutine (readPump/writePump) because gorilla/websocket forbids
// concurrent readers or concurrent writers on the same *websocket.Conn;
// ReadEnvelope/WriteEnvelope are the only things callers touch, and both
// are safe to call concurrently with each other and across goroutines.
type Conn struct {
	transport.StateTracker

	raw          *websocket.Conn
	remoteAddr   string
	pingInterval time.Duration
	pongWait     time.Duration

	elicit *ElicitationPipe

	readCh    chan *mcp.Envelope
	readErrCh chan error
	writeCh   chan writeRequest

	closeOnce sync.Once
	doneCh    chan struct{}
}

type writeRequest struct {
	data   []byte
	result chan error
}

func newConn(raw *websocket.Conn, remoteAddr string) *Conn {
	c := &Conn{
		raw:          raw,
		remoteAddr:   remoteAddr,
		pingInterval: DefaultPingInterval,
		pongWait:     DefaultPongWait,
		elicit:       newElicitationPipe(),
		readCh:       make(chan *mcp.Envelope, 16),
		readErrCh:    make(chan error, 1),
		writeCh:      make(chan writeRequest),
		doneCh:       make(chan struct{}),
	}
	c.SetState(transport.StateOpen)

	raw.SetReadDeadline(time.Now().Add(c.pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	go c.readPump()
	go c.writePump()
	go c.elicit.reap(c.doneCh)

	return c
}

// readPump is the connection's single reader. Every decoded envelope is
// first offered to the elicitation pipe (it may be the client's answer to
// a server-initiated elicit request); anything the pipe doesn't claim is
// forwarded to readCh for ReadEnvelope to pick up.
func (c *Conn) readPump() {
	defer c.forceClose()
	for {
		_, data, err := c.raw.ReadMessage()
		if err != nil {
			select {
			case c.readErrCh <- err:
			default:
			}
			return
		}
		env, err := mcp.DecodeEnvelope(data)
		if err != nil {
			select {
			case c.readErrCh <- err:
			default:
			}
			return
		}
		if env.IsResponse() && c.elicit.resolve(env) {
			continue
		}
		select {
		case c.readCh <- env:
		case <-c.doneCh:
			return
		}
	}
}

// writePump is the connection's single writer, serializing envelope
// writes and periodic pings onto the one stream gorilla/websocket allows.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	defer c.forceClose()

	for {
		select {
		case <-c.doneCh:
			return
		case <-ticker.C:
			c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case req := <-c.writeCh:
			c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.raw.WriteMessage(websocket.TextMessage, req.data)
			req.result <- err
			if err != nil {
				return
			}
		}
	}
}

func (c *Conn) ReadEnvelope(ctx context.Context) (*mcp.Envelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.doneCh:
		return nil, transport.ErrClosed
	case env := <-c.readCh:
		return env, nil
	case err := <-c.readErrCh:
		return nil, fmt.Errorf("websocket read: %w", err)
	}
}

func (c *Conn) WriteEnvelope(ctx context.Context, env *mcp.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	req := writeRequest{data: data, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.doneCh:
		return transport.ErrClosed
	case c.writeCh <- req:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.result:
		if err != nil {
			return fmt.Errorf("websocket write: %w", err)
		}
		return nil
	}
}

// Elicit sends a server-initiated "elicitation/create" request and blocks
// for the client's answer or the deadline, whichever comes first. On
// timeout it synthesizes ElicitResult{Action: ElicitActionCancel} rather
// than returning an error, matching spec.md's elicitation pipe contract.
func (c *Conn) Elicit(ctx context.Context, id mcp.ID, params mcp.ElicitParams, deadline time.Duration) (*mcp.ElicitResult, error) {
	env, err := mcp.NewRequest(id, mcp.MethodElicitationCreate, params)
	if err != nil {
		return nil, err
	}
	waiter := c.elicit.register(id, time.Now().Add(deadline))
	if err := c.WriteEnvelope(ctx, env); err != nil {
		c.elicit.cancel(id)
		return nil, err
	}
	select {
	case <-ctx.Done():
		c.elicit.cancel(id)
		return nil, ctx.Err()
	case result := <-waiter:
		return result, nil
	}
}

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.SetState(transport.StateClosing)
		close(c.doneCh)
		err = c.raw.Close()
		c.SetState(transport.StateClosed)
	})
	return err
}

// forceClose is invoked by readPump/writePump when the underlying socket
// misbehaves (the health-monitor case spec.md describes: reader/writer
// inconsistency forces the connection to Closed so a reconnect path, if
// one is wrapping this Conn, can run).
func (c *Conn) forceClose() {
	c.Close()
}

var _ transport.Conn = (*Conn)(nil)
