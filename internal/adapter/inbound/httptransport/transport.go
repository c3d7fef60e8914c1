package httptransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Transport is the inbound Streamable HTTP adapter: POST for
// request/response, GET /events for the server-initiated SSE stream,
// DELETE /session to terminate. It owns no protocol logic of its own —
// every decoded envelope is handed to an Engine — but it does own
// session lifecycle (creation on initialize, lookup/touch on every
// other request) and the live SSE fanout.
type Transport struct {
	addr         string
	basePath     string
	certFile     string
	keyFile      string
	tlsConfig    *tls.Config
	originPolicy OriginPolicy
	maxBodyBytes int64
	logger       *slog.Logger
	middlewares  []func(http.Handler) http.Handler

	// identityResolver, if set, is consulted once at session creation
	// during initialize to bind an already-authenticated identity (see
	// WithIdentityResolver).
	identityResolver func(ctx context.Context) (*auth.Identity, bool)

	sessions *session.Manager
	engine   Engine
	live     *liveStreams

	server *http.Server
}

// Option configures a Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default "127.0.0.1:8080".
func WithAddr(addr string) Option { return func(t *Transport) { t.addr = addr } }

// WithBasePath sets the path prefix endpoints are mounted under.
// Default "/mcp".
func WithBasePath(path string) Option { return func(t *Transport) { t.basePath = path } }

// WithTLS enables HTTPS using the given certificate/key files, with
// the default tlspolicy floor (TLS 1.3). For anything other than
// local testing, prefer WithTLSConfig with a config built by
// internal/security/tlspolicy and so honors an explicit Insecure
// opt-out instead of silently floor-ing at 1.3.
func WithTLS(certFile, keyFile string) Option {
	return func(t *Transport) { t.certFile, t.keyFile = certFile, keyFile }
}

// WithTLSConfig installs a tls.Config built ahead of time (typically
// via tlspolicy.Policy.Build, which enforces the TLS 1.3 floor unless
// Insecure is set). certFile/keyFile are still required since
// http.Server.ListenAndServeTLS reloads the keypair from disk itself.
func WithTLSConfig(cfg *tls.Config, certFile, keyFile string) Option {
	return func(t *Transport) {
		t.tlsConfig = cfg
		t.certFile, t.keyFile = certFile, keyFile
	}
}

// WithOriginPolicy sets the DNS-rebinding protection policy.
func WithOriginPolicy(policy OriginPolicy) Option {
	return func(t *Transport) { t.originPolicy = policy }
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option { return func(t *Transport) { t.maxBodyBytes = n } }

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option { return func(t *Transport) { t.logger = logger } }

// WithIdentityResolver equips the transport with a hook resolving the
// authenticated identity (if any) from request context — the seam the
// security/authn API-key middleware's extracted raw key reaches the
// application layer through, per spec.md §4.8.4: "the transport
// performs format validation only ... application verification"
// happens here, one layer up, at session creation.
func WithIdentityResolver(fn func(ctx context.Context) (*auth.Identity, bool)) Option {
	return func(t *Transport) { t.identityResolver = fn }
}

// WithMiddleware appends an additional middleware layered closest to
// the handler (after origin/real-IP/request-id), the seam the security
// package (C8) uses to add rate limiting and authentication without
// this package needing to know about either.
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(t *Transport) { t.middlewares = append(t.middlewares, mw) }
}

// New creates a Streamable HTTP transport dispatching into engine and
// backed by sessions for lifecycle state.
func New(sessions *session.Manager, engine Engine, opts ...Option) *Transport {
	t := &Transport{
		addr:         "127.0.0.1:8080",
		basePath:     "/mcp",
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
		sessions:     sessions,
		engine:       engine,
		live:         newLiveStreams(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Push delivers a server-initiated envelope to sessionID: it is
// durably appended to the session's EventLog (for Last-Event-ID replay)
// and fanned out to any currently open SSE stream. Used by the
// bidirectional API (C10) and by resource/list-change notifications.
func (t *Transport) Push(ctx context.Context, sessionID string, env *mcp.Envelope) error {
	sess, err := t.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("push to session %s: %w", sessionID, err)
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode push envelope: %w", err)
	}
	id := sess.Events().Append(data)
	t.live.publish(sessionID, session.Event{ID: id, Data: data})
	return nil
}

// Start begins serving and blocks until ctx is canceled or the server
// fails to start.
func (t *Transport) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(t.basePath, t.routePost)
	mux.HandleFunc(t.basePath+"/events", t.handleGet)
	mux.HandleFunc(t.basePath+"/session", t.handleDelete)

	var handler http.Handler = mux
	for i := len(t.middlewares) - 1; i >= 0; i-- {
		handler = t.middlewares[i](handler)
	}
	handler = OriginMiddleware(t.originPolicy)(handler)
	handler = RealIPMiddleware(handler)
	handler = RequestIDMiddleware(t.logger)(handler)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: handler,
	}
	if t.certFile != "" && t.keyFile != "" {
		if t.tlsConfig != nil {
			t.server.TLSConfig = t.tlsConfig
		} else {
			t.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting streamable HTTP server (TLS)", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting streamable HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *Transport) routePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t.handlePost(w, r)
}

func (t *Transport) shutdown() error {
	t.live.closeAll()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during HTTP transport shutdown", "error", err)
		return err
	}
	t.logger.Info("streamable HTTP transport shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
