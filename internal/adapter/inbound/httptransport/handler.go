package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// SessionIDHeader carries the session identity on every non-initialize
// request and is echoed back on initialize's response.
const SessionIDHeader = "Mcp-Session-Id"

// ProtocolVersionHeader carries the negotiated protocol version in both
// directions.
const ProtocolVersionHeader = "MCP-Protocol-Version"

// DefaultMaxBodyBytes is the default request body ceiling (1 MiB) per
// spec.md's Streamable HTTP security gates.
const DefaultMaxBodyBytes = 1 << 20

func (t *Transport) handlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, t.maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeEnvelopeError(w, http.StatusOK, mcp.ID{}, mcp.NewError(mcp.KindSerialization, "request body exceeds limit"))
			return
		}
		writeEnvelopeError(w, http.StatusOK, mcp.ID{}, mcp.NewError(mcp.KindSerialization, "failed to read request body"))
		return
	}
	if len(body) == 0 {
		writeEnvelopeError(w, http.StatusOK, mcp.ID{}, mcp.NewError(mcp.KindSerialization, "empty request body"))
		return
	}

	env, err := mcp.DecodeEnvelope(body)
	if err != nil {
		var mcpErr *mcp.Error
		if !errors.As(err, &mcpErr) {
			mcpErr = mcp.NewError(mcp.KindSerialization, err.Error())
		}
		status := http.StatusOK
		if mcpErr.Kind == mcp.KindProtocol {
			status = http.StatusBadRequest
		}
		writeEnvelopeError(w, status, mcp.ID{}, mcpErr)
		return
	}

	ctx := r.Context()

	if env.Method == mcp.MethodInitialize {
		t.handleInitialize(w, r, env)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		writeEnvelopeError(w, http.StatusBadRequest, env.ID, mcp.NewError(mcp.KindInvalidParams, "Mcp-Session-Id header required"))
		return
	}
	sess, err := t.sessions.Touch(ctx, sessionID)
	if err != nil {
		w.WriteHeader(http.StatusGone)
		return
	}

	if v := r.Header.Get(ProtocolVersionHeader); v != "" && v != sess.ProtocolVersion {
		writeEnvelopeError(w, http.StatusBadRequest, env.ID, mcp.NewErrorf(mcp.KindProtocolVersionMismatch, "protocol version %q does not match negotiated %q", v, sess.ProtocolVersion))
		return
	}

	resp, err := t.engine.HandleEnvelope(ctx, sess, env)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		writeEnvelopeError(w, http.StatusOK, env.ID, mcp.NewErrorf(mcp.KindInternal, "%v", err))
		return
	}

	w.Header().Set(ProtocolVersionHeader, sess.ProtocolVersion)
	w.Header().Set(SessionIDHeader, sess.ID)

	if resp == nil {
		// Notification, or a client response to a server-initiated
		// request: nothing to send back per spec.md's Streamable HTTP
		// rules.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	t.writeEnvelope(w, http.StatusOK, resp)
}

func (t *Transport) handleInitialize(w http.ResponseWriter, r *http.Request, env *mcp.Envelope) {
	ctx := r.Context()

	var params mcp.InitializeParams
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &params); err != nil {
			writeEnvelopeError(w, http.StatusBadRequest, env.ID, mcp.NewError(mcp.KindInvalidParams, "invalid initialize params"))
			return
		}
	}

	sess, err := t.sessions.Create(ctx, RemoteIPFromContext(ctx))
	if err != nil {
		writeEnvelopeError(w, http.StatusOK, env.ID, mcp.NewErrorf(mcp.KindInternal, "create session: %v", err))
		return
	}

	negotiated := mcp.NegotiateVersion(params.ProtocolVersion)
	sess, err = t.sessions.Activate(ctx, sess.ID, negotiated, params.ClientInfo.Name, params.ClientInfo.Version)
	if err != nil {
		writeEnvelopeError(w, http.StatusOK, env.ID, mcp.NewErrorf(mcp.KindInternal, "activate session: %v", err))
		return
	}

	if t.identityResolver != nil {
		if identity, ok := t.identityResolver(ctx); ok {
			if err := t.sessions.BindIdentity(ctx, sess.ID, identity); err != nil {
				t.logger.Warn("bind identity", "session_id", sess.ID, "error", err)
			} else {
				sess.IdentityID = identity.ID
				sess.Roles = append([]auth.Role(nil), identity.Roles...)
			}
		}
	}

	resp, err := t.engine.HandleEnvelope(ctx, sess, env)
	if err != nil {
		writeEnvelopeError(w, http.StatusOK, env.ID, mcp.NewErrorf(mcp.KindInternal, "%v", err))
		return
	}

	w.Header().Set(ProtocolVersionHeader, negotiated)
	w.Header().Set(SessionIDHeader, sess.ID)

	if resp == nil {
		resp, err = mcp.NewResultResponse(env.ID, mcp.InitializeResult{
			ProtocolVersion: negotiated,
			Capabilities:    t.capabilities(params.Capabilities),
			ServerInfo:      params.ClientInfo,
		})
		if err != nil {
			writeEnvelopeError(w, http.StatusOK, env.ID, mcp.NewErrorf(mcp.KindInternal, "%v", err))
			return
		}
	}
	t.writeEnvelope(w, http.StatusOK, resp)
}

// capabilityReporter is implemented by engines that can describe what
// they actually support (e.g. registry.Runtime, reading its catalog).
// Optional: checked via assertion so the Engine port stays minimal for
// engines that don't need it.
type capabilityReporter interface {
	Capabilities() mcp.ServerCapabilities
}

// capabilities reports what this server supports, intersected against
// what the client declared in its initialize request.
func (t *Transport) capabilities(client mcp.ClientCapabilities) mcp.ServerCapabilities {
	r, ok := t.engine.(capabilityReporter)
	if !ok {
		return mcp.ServerCapabilities{}
	}
	return mcp.NegotiateCapabilities(r.Capabilities(), client)
}

func (t *Transport) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess, err := t.sessions.Get(ctx, sessionID)
	if err != nil {
		http.Error(w, "session not found or expired", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(ProtocolVersionHeader, sess.ProtocolVersion)
	w.Header().Set(SessionIDHeader, sess.ID)
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: session\ndata: {\"sessionId\":%q}\n\n", sess.ID)
	flusher.Flush()

	if lastIDHeader := r.Header.Get("Last-Event-ID"); lastIDHeader != "" {
		var lastID uint64
		if _, err := fmt.Sscanf(lastIDHeader, "%d", &lastID); err == nil {
			events, ok := sess.Events().Since(lastID)
			if !ok {
				t.logger.Warn("SSE replay window exceeded", "session_id", sess.ID, "last_event_id", lastIDHeader)
			}
			for _, ev := range events {
				writeSSEEvent(w, ev)
				flusher.Flush()
			}
		}
	}

	ch, unsubscribe := t.live.subscribe(sess.ID)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev session.Event) {
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.ID, ev.Data)
}

func (t *Transport) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}
	if err := t.sessions.Terminate(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	t.live.terminate(sessionID)
	t.forgetSession(sessionID)
	w.WriteHeader(http.StatusOK)
}

// sessionForgetter is implemented by engines that track per-session
// state beyond the session store itself (e.g. registry.Runtime's
// resource subscriptions). Optional: checked via assertion so the
// Engine port stays minimal for engines that don't need it.
type sessionForgetter interface {
	ForgetSession(sessionID string)
}

func (t *Transport) forgetSession(sessionID string) {
	if f, ok := t.engine.(sessionForgetter); ok {
		f.ForgetSession(sessionID)
	}
}

func (t *Transport) writeEnvelope(w http.ResponseWriter, status int, env *mcp.Envelope) {
	data, err := env.Encode()
	if err != nil {
		t.logger.Error("failed to encode response envelope", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeEnvelopeError(w http.ResponseWriter, status int, id mcp.ID, mcpErr *mcp.Error) {
	env := mcp.NewErrorResponse(id, mcpErr)
	data, err := env.Encode()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err != nil {
		return
	}
	_, _ = w.Write(data)
}
