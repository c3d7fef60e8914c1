// Package authn implements spec.md §4.8.4's two authentication modes.
// This file covers API-key mode: the transport only validates the key's
// wire format (non-empty, bounded length, restricted charset) and
// forwards the raw key to the application layer via request context —
// it never looks the key up itself, keeping this package free of any
// dependency on a credential store.
package authn

import (
	"context"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader is the header name spec.md's API-key mode reads
// from when none is configured.
const DefaultAPIKeyHeader = "X-API-Key"

const (
	minAPIKeyLength = 16
	maxAPIKeyLength = 512
)

type apiKeyContextKey struct{}

// APIKeyFromContext returns the raw API key APIKeyMiddleware extracted,
// or "" if none was present. The application layer is responsible for
// looking it up and deciding whether it's valid.
func APIKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyContextKey{}).(string)
	return key
}

// APIKeyConfig configures the API-key extraction middleware.
type APIKeyConfig struct {
	// Header is the header name to read the key from. Defaults to
	// DefaultAPIKeyHeader.
	Header string
	// Required, when true, rejects requests with no key (401) instead of
	// letting them through unauthenticated for a downstream check to
	// reject. A malformed key is rejected with 400 whether or not
	// Required is set.
	Required bool
	// Challenge fills the RFC 9728 fields on the 401 this middleware
	// sends when Required and no key is present.
	Challenge ChallengeConfig
}

// APIKeyMiddleware extracts and format-validates an API key, storing it
// in context for the application layer to verify against its store. It
// never performs the credential lookup itself — see spec.md §4.8.4:
// "the transport performs format validation only ... and inserts the key
// into request extensions for application verification."
func APIKeyMiddleware(cfg APIKeyConfig) func(http.Handler) http.Handler {
	header := cfg.Header
	if header == "" {
		header = DefaultAPIKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractAPIKey(r, header)
			if raw == "" {
				if cfg.Required {
					writeUnauthenticated(w, cfg.Challenge, "invalid_request", "missing API key")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !validAPIKeyFormat(raw) {
				http.Error(w, "malformed API key", http.StatusBadRequest)
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyContextKey{}, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAPIKey reads the key from header, or from a Bearer
// Authorization header as a fallback for clients that only know how to
// send bearer tokens.
func extractAPIKey(r *http.Request, header string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// validAPIKeyFormat checks non-empty, bounded length, and a restricted
// charset (alphanumeric plus common key-encoding punctuation), rejecting
// anything control-character-laden or absurdly long before it ever
// reaches a comparison function.
func validAPIKeyFormat(key string) bool {
	if len(key) < minAPIKeyLength || len(key) > maxAPIKeyLength {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == '=' || c == ':' || c == '$':
		default:
			return false
		}
	}
	return true
}
