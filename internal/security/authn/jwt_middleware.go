package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/turbomcp/turbomcp/internal/security/authn/jwt"
)

type jwtContextKey struct{}

// JWTClaimsFromContext returns the claims JWTMiddleware verified, or nil
// if no valid bearer token was present.
func JWTClaimsFromContext(ctx context.Context) *jwt.Claims {
	claims, _ := ctx.Value(jwtContextKey{}).(*jwt.Claims)
	return claims
}

// JWTConfig configures the bearer-token middleware.
type JWTConfig struct {
	// Header is the header name to read the token from. Defaults to
	// "Authorization".
	Header string
	// Required, when true, rejects requests with no token (401) instead
	// of letting them through for a downstream check (e.g. the API-key
	// mode) to authenticate by another means. A token that is present but
	// fails validation is rejected with 401 whether or not Required is set.
	Required bool
	// Challenge fills the RFC 9728 fields on any 401 this middleware
	// sends.
	Challenge ChallengeConfig
}

// JWTMiddleware validates a bearer token with validator and stores its
// claims in context, mirroring APIKeyMiddleware's shape. The two modes
// are independent and combinable per spec.md §4.8.4: a request can carry
// both an API key and a JWT, satisfying either or both Required flags.
func JWTMiddleware(validator *jwt.Validator, cfg JWTConfig) func(http.Handler) http.Handler {
	header := cfg.Header
	if header == "" {
		header = "Authorization"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearerToken(r, header)
			if raw == "" {
				if cfg.Required {
					writeUnauthenticated(w, cfg.Challenge, "invalid_request", "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.Validate(r.Context(), raw)
			if err != nil {
				writeUnauthenticated(w, cfg.Challenge, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), jwtContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken reads the token from header, stripping a "Bearer "
// prefix if present (header defaults to Authorization, where the prefix
// is mandatory, but a caller may point it at a bare-token header).
func extractBearerToken(r *http.Request, header string) string {
	v := r.Header.Get(header)
	if v == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(v, "Bearer "); ok {
		return rest
	}
	return v
}
