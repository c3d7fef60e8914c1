package wstransport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/turbomcp/turbomcp/internal/domain/transport"
	"github.com/turbomcp/turbomcp/internal/security/origin"
)

// Listener accepts WebSocket upgrades on a single HTTP path and exposes
// each successful upgrade as a transport.Conn.
type Listener struct {
	ln       net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	connCh chan transport.Conn
	doneCh chan struct{}
	once   sync.Once
}

// Listen starts an HTTP server on addr that upgrades any request to path
// into a WebSocket connection, applying policy the same way the
// Streamable HTTP transport's OriginMiddleware does (spec.md's
// DNS-rebinding guard applies to every inbound transport, not just HTTP).
func Listen(addr, path string, policy origin.Policy) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen ws %s: %w", addr, err)
	}
	checker := origin.NewChecker(policy)

	l := &Listener{
		ln:     ln,
		connCh: make(chan transport.Conn),
		doneCh: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return checker.Allowed(r.Header.Get("Origin"))
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.server = &http.Server{Handler: mux}

	go func() {
		_ = l.server.Serve(ln)
	}()

	return l, nil
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	raw, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := newConn(raw, r.RemoteAddr)

	select {
	case l.connCh <- conn:
	case <-l.doneCh:
		conn.Close()
	}
}

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.doneCh:
		return nil, transport.ErrClosed
	case conn := <-l.connCh:
		return conn, nil
	}
}

func (l *Listener) Addr() string { return l.ln.Addr().String() }

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.doneCh)
		err = l.server.Close()
	})
	return err
}

var _ transport.Listener = (*Listener)(nil)
