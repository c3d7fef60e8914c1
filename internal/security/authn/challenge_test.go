package authn

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteUnauthenticatedIncludesRFC9728Fields(t *testing.T) {
	rec := httptest.NewRecorder()
	writeUnauthenticated(rec, ChallengeConfig{
		ResourceMetadata: "https://example.com/.well-known/oauth-protected-resource",
		Scope:            "mcp:tools",
	}, "invalid_token", "token expired")

	header := rec.Header().Get("WWW-Authenticate")
	for _, want := range []string{
		`resource_metadata="https://example.com/.well-known/oauth-protected-resource"`,
		`scope="mcp:tools"`,
		`error="invalid_token"`,
		`error_description="token expired"`,
	} {
		if !strings.Contains(header, want) {
			t.Fatalf("WWW-Authenticate = %q, want substring %q", header, want)
		}
	}
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
