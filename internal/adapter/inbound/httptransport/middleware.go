package httptransport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/turbomcp/turbomcp/internal/security/origin"
)

type contextKey int

const (
	requestIDContextKey contextKey = iota
	remoteIPContextKey
)

// RequestIDMiddleware extracts or generates a request id and enriches
// the logger passed to downstream handlers via context.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the request id stashed by
// RequestIDMiddleware, or "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// RealIPMiddleware records the client's real address (honoring
// X-Forwarded-For/X-Real-IP from a trusted reverse proxy) for session
// RemoteAddr binding and, later, per-IP rate limiting.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := realIP(r)
		ctx := context.WithValue(r.Context(), remoteIPContextKey, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RemoteIPFromContext returns the address RealIPMiddleware resolved.
func RemoteIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(remoteIPContextKey).(string)
	return ip
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// OriginPolicy configures DNS-rebinding protection: the Origin header
// on every request is checked against AllowedOrigins unless AllowAny is
// set. A request with no Origin header (same-origin, or a non-browser
// client) is always allowed, matching the common MCP client behavior of
// not sending one.
type OriginPolicy = origin.Policy

// OriginMiddleware enforces policy, running before any envelope parsing
// so a rebinding attempt never reaches the protocol layer. The actual
// allow-list evaluation lives in internal/security/origin so the
// WebSocket transport's upgrade handshake can apply the identical policy.
func OriginMiddleware(policy OriginPolicy) func(http.Handler) http.Handler {
	checker := origin.NewChecker(policy)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Allowed(r.Header.Get("Origin")) {
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
