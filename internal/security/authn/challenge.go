package authn

import (
	"fmt"
	"net/http"
)

// ChallengeConfig carries the fields RFC 9728 requires on every
// WWW-Authenticate: Bearer challenge this server sends, shared by both
// the API-key and JWT modes since a client probing either one needs the
// same resource-metadata discovery document and scope hint.
type ChallengeConfig struct {
	// ResourceMetadata is the protected-resource metadata URL (RFC 9728
	// §5), e.g. "https://host/.well-known/oauth-protected-resource".
	ResourceMetadata string
	// Scope is the space-delimited scope this resource expects.
	Scope string
}

// writeUnauthenticated responds 401 with the RFC 9728 challenge header
// spec.md §4.8.4 requires on every auth failure: resource_metadata and
// scope alongside the usual OAuth error/error_description pair.
func writeUnauthenticated(w http.ResponseWriter, cfg ChallengeConfig, errorCode, reason string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer resource_metadata=%q, scope=%q, error=%q, error_description=%q`,
		cfg.ResourceMetadata, cfg.Scope, errorCode, reason,
	))
	http.Error(w, reason, http.StatusUnauthorized)
}
