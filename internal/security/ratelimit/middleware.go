// Package ratelimit wires domain/ratelimit.RateLimiter into an HTTP
// middleware that keys by client identity: an authenticated API key or
// bearer subject when present (via IdentityFromContext), falling back
// to peer IP. It does not implement an algorithm of its own — the GCRA
// implementation lives in internal/domain/ratelimit and
// internal/adapter/outbound/memory, reused as-is here.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/ratelimit"
)

type identityContextKey struct{}

// WithIdentity stashes the authenticated identity (API key ID or JWT
// subject) for the rate limiter to key on instead of peer IP. Call this
// from an authn middleware positioned before Middleware in the chain.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stashed by WithIdentity, or
// "" if none is present.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityContextKey{}).(string)
	return id
}

// Config is {max_requests, window, enabled} from spec.md §4.8.2.
type Config struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// RemoteIPFunc resolves the peer IP to key on when no authenticated
// identity is present in the request context. Left as an injected func
// so this package never needs to import the transport-specific
// "real IP" resolution logic (net/http vs. other transports).
type RemoteIPFunc func(*http.Request) string

// Middleware enforces cfg against limiter, returning 429 with
// Retry-After when a client exceeds its quota.
func Middleware(limiter ratelimit.RateLimiter, cfg Config, remoteIP RemoteIPFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			keyType := ratelimit.KeyTypeIP
			identity := IdentityFromContext(r.Context())
			value := identity
			if value == "" {
				value = remoteIP(r)
			} else {
				keyType = ratelimit.KeyTypeUser
			}

			key := ratelimit.FormatKey(keyType, value)
			result, err := limiter.Allow(r.Context(), key, ratelimit.RateLimitConfig{
				Rate:   cfg.MaxRequests,
				Burst:  cfg.MaxRequests,
				Period: cfg.Window,
			})
			if err != nil {
				// Fail open: a rate limiter outage should not take down
				// the transport it's protecting.
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
