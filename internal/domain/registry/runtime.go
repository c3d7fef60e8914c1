package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/turbomcp/turbomcp/internal/domain/bidi"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/internal/observability"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Runtime dispatches decoded envelopes against a Registry, satisfying
// the inbound transports' Engine port. It owns nothing about wire
// framing or sessions beyond reading the Session it's handed.
type Runtime struct {
	registry *Registry
	pool     *ContextPool
	logger   *slog.Logger
	hub      *bidi.Hub
	recorder *observability.Recorder
	subs     *SubscriptionManager
}

// Runtime satisfies the inbound transports' Engine port structurally
// (registry avoids importing the adapter layer to check this directly).
var _ interface {
	HandleEnvelope(context.Context, *session.Session, *mcp.Envelope) (*mcp.Envelope, error)
} = (*Runtime)(nil)

// RuntimeOption configures optional Runtime dependencies.
type RuntimeOption func(*Runtime)

// WithHub equips the runtime with a bidirectional hub, enabling
// RequestContext.ServerToClient() for handlers and routing client
// replies for server-initiated requests back to their waiters.
func WithHub(hub *bidi.Hub) RuntimeOption {
	return func(rt *Runtime) { rt.hub = hub }
}

// WithRecorder equips the runtime with an observability recorder:
// every dispatched request opens a span and updates the global/
// per-tenant counters and Prometheus instruments described in
// spec.md §4.11.
func WithRecorder(recorder *observability.Recorder) RuntimeOption {
	return func(rt *Runtime) { rt.recorder = recorder }
}

// NewRuntime builds a Runtime over reg. A nil logger falls back to
// slog.Default().
func NewRuntime(reg *Registry, logger *slog.Logger, opts ...RuntimeOption) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{registry: reg, pool: NewContextPool(), logger: logger, subs: NewSubscriptionManager()}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// SetHub wires a bidirectional hub into an already-constructed Runtime.
// Exists alongside WithHub because the hub's Sender is usually the
// inbound transport that the runtime itself must be constructed before
// (the transport needs an Engine to dispatch into): build the runtime,
// build the transport around it, build the hub around the transport,
// then call SetHub.
func (rt *Runtime) SetHub(hub *bidi.Hub) {
	rt.hub = hub
}

// NotifyResourceUpdated pushes notifications/resources/updated to every
// session currently subscribed to uri. A resource handler reaches this
// through RequestContext.NotifyResourceUpdated; it has no effect when
// no hub is configured (e.g. a transport that can't push, or a test).
func (rt *Runtime) NotifyResourceUpdated(ctx context.Context, uri string) error {
	if rt.hub == nil {
		return nil
	}
	for _, sessionID := range rt.subs.Subscribers(uri) {
		if err := rt.hub.Notify(ctx, sessionID, mcp.MethodNotificationsResourcesUpdated, mcp.ResourceUpdatedParams{URI: uri}); err != nil {
			rt.logger.Warn("notify resource updated", "uri", uri, "session_id", sessionID, "error", err)
		}
	}
	return nil
}

// ForgetSession releases every resource subscription sess holds.
// Inbound transports call this on session termination so a stale
// subscription never outlives its session.
func (rt *Runtime) ForgetSession(sessionID string) {
	rt.subs.Forget(sessionID)
}

// Capabilities reports the ServerCapabilities this runtime can actually
// deliver: catalog presence from the registry, with Resources.Subscribe
// true since subscription bookkeeping is wired (see SubscriptionManager).
func (rt *Runtime) Capabilities() mcp.ServerCapabilities {
	return rt.registry.Capabilities(true)
}

// clientFor returns the server-to-client facade for sess, or nil when
// no hub is configured or sess is unset.
func (rt *Runtime) clientFor(sess *session.Session) *bidi.Client {
	if rt.hub == nil || sess == nil {
		return nil
	}
	return rt.hub.ForSession(sess.ID)
}

// HandleEnvelope implements the Engine port transports dispatch into.
// Every request (not notification, not response) is wrapped in an
// observability.RequestScope when a recorder is configured, per
// spec.md §4.11.
func (rt *Runtime) HandleEnvelope(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	if env.IsResponse() {
		// A client reply to a server-initiated request belongs to the
		// bidirectional API's correlation dispatcher, not this runtime.
		if rt.hub != nil && sess != nil {
			rt.hub.Resolve(sess.ID, env)
		}
		return nil, nil
	}

	if rt.recorder == nil || !env.HasID() {
		return rt.dispatch(ctx, sess, env)
	}

	sessionID, tenantID := "", ""
	if sess != nil {
		sessionID, tenantID = sess.ID, sess.TenantID
	}
	ctx, scope := rt.recorder.BeginRequest(ctx, env.Method, sessionID, tenantID, requestIDFor(env))
	resp, err := rt.dispatch(ctx, sess, env)
	scope.EndRequest(outcomeOf(resp, err), errorOf(resp, err))
	return resp, err
}

// outcomeOf reports "ok" unless dispatch returned a Go error or an
// error response envelope, in which case it reports the error's class.
func outcomeOf(resp *mcp.Envelope, err error) string {
	return observability.ErrorClass(errorOf(resp, err))
}

// errorOf extracts the error a dispatched request ended with, whether
// it surfaced as a Go error or as an Envelope carrying a JSON-RPC
// error object.
func errorOf(resp *mcp.Envelope, err error) error {
	if err != nil {
		return err
	}
	if resp != nil && resp.Error != nil {
		return resp.Error
	}
	return nil
}

// requestIDFor stringifies env's id for tracing/logging; numeric and
// string ids both render as non-empty strings.
func requestIDFor(env *mcp.Envelope) string {
	if env.ID.IsString() {
		return env.ID.String()
	}
	return strconv.FormatInt(env.ID.Number(), 10)
}

func (rt *Runtime) dispatch(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	switch env.Method {
	case mcp.MethodInitialize, mcp.MethodInitialized, mcp.MethodPing:
		// Handled by the transport itself (initialize/ping) or requires
		// no reply (initialized).
		return nil, nil

	case mcp.MethodToolsList:
		return rt.handleList(env, func(cursor string) (any, error) { return rt.registry.ListTools(cursor) })
	case mcp.MethodToolsCall:
		return rt.handleToolsCall(ctx, sess, env)

	case mcp.MethodResourcesList:
		return rt.handleList(env, func(cursor string) (any, error) { return rt.registry.ListResources(cursor) })
	case mcp.MethodResourcesTemplatesList:
		return rt.handleList(env, func(cursor string) (any, error) { return rt.registry.ListResourceTemplates(cursor) })
	case mcp.MethodResourcesRead:
		return rt.handleResourcesRead(ctx, sess, env)
	case mcp.MethodResourcesSubscribe:
		return rt.handleSubscribe(sess, env)
	case mcp.MethodResourcesUnsubscribe:
		return rt.handleUnsubscribe(sess, env)

	case mcp.MethodPromptsList:
		return rt.handleList(env, func(cursor string) (any, error) { return rt.registry.ListPrompts(cursor) })
	case mcp.MethodPromptsGet:
		return rt.handlePromptsGet(ctx, sess, env)

	default:
		resp := mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindMethodNotFound, "unknown method %q", env.Method))
		return resp, nil
	}
}

// handleSubscribe records sess's interest in a resource's updates.
// Subscriptions are session-scoped: they never outlive the session
// (see ForgetSession) and nothing is persisted across a reconnect.
func (rt *Runtime) handleSubscribe(sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	var params mcp.SubscribeParams
	if err := parseParams(env, &params); err != nil {
		return mcp.NewErrorResponse(env.ID, err), nil
	}
	if sess != nil {
		rt.subs.Subscribe(sess.ID, params.URI)
	}
	resp, err := mcp.NewResultResponse(env.ID, struct{}{})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (rt *Runtime) handleUnsubscribe(sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	var params mcp.UnsubscribeParams
	if err := parseParams(env, &params); err != nil {
		return mcp.NewErrorResponse(env.ID, err), nil
	}
	if sess != nil {
		rt.subs.Unsubscribe(sess.ID, params.URI)
	}
	resp, err := mcp.NewResultResponse(env.ID, struct{}{})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (rt *Runtime) handleList(env *mcp.Envelope, list func(cursor string) (any, error)) (*mcp.Envelope, error) {
	var params struct {
		Cursor string `json:"cursor,omitempty"`
	}
	if len(env.Params) > 0 {
		if err := parseParams(env, &params); err != nil {
			return mcp.NewErrorResponse(env.ID, err), nil
		}
	}
	result, err := list(params.Cursor)
	if err != nil {
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindInvalidParams, "invalid cursor: %v", err)), nil
	}
	resp, err := mcp.NewResultResponse(env.ID, result)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func parseParams(env *mcp.Envelope, v any) *mcp.Error {
	if len(env.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Params, v); err != nil {
		return mcp.NewErrorf(mcp.KindInvalidParams, "parse params for %s: %v", env.Method, err)
	}
	return nil
}
