package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Identities: []IdentityConfig{{ID: "user-1", Name: "Test", Roles: []string{"user"}}},
			APIKeys:    []APIKeyConfig{{KeyHash: "argon2id:abc123", IdentityID: "user-1"}},
		},
		Audit: AuditConfig{Output: "stdout"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_InvalidAuditOutput(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Output = "invalid"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Audit.Output") {
		t.Errorf("error = %q, want to contain 'Audit.Output'", err.Error())
	}
}

func TestValidate_ValidAuditOutputStdout(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Output = "stdout"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with stdout unexpected error: %v", err)
	}
}

func TestValidate_ValidAuditOutputFile(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Output = "file:///var/log/audit.log"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with file:// unexpected error: %v", err)
	}
}

func TestValidate_InvalidAuditOutputRelativePath(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Audit.Output = "file://relative/path"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for relative path, got nil")
	}
	if !strings.Contains(err.Error(), "Audit.Output") {
		t.Errorf("error = %q, want to contain 'Audit.Output'", err.Error())
	}
}

func TestValidate_UnknownIdentityReference(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Auth.APIKeys[0].IdentityID = "unknown-user"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for unknown identity, got nil")
	}
	if !strings.Contains(err.Error(), "unknown identity_id") {
		t.Errorf("error = %q, want to contain 'unknown identity_id'", err.Error())
	}
}

func TestValidate_MissingIdentities(t *testing.T) {
	t.Parallel()

	// Empty auth is valid (anonymous-only mode).
	cfg := minimalValidConfig()
	cfg.Auth.Identities = nil
	cfg.Auth.APIKeys = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with empty auth unexpected error: %v", err)
	}
}

func TestValidate_MissingAPIKeys(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Auth.APIKeys = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with empty API keys unexpected error: %v", err)
	}
}

func TestValidate_ZeroConfig(t *testing.T) {
	t.Parallel()

	// Simulate a user running "turbomcp serve" with no config file at all.
	cfg := &Config{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}
	if cfg.Audit.Output != "stdout" {
		t.Errorf("default audit output = %q, want 'stdout'", cfg.Audit.Output)
	}
}

func TestValidate_EmptyRoles(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Auth.Identities[0].Roles = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for empty roles, got nil")
	}
}

func TestValidate_UnixRequiresPathWhenTrustingPeerCredentials(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.Unix = &UnixServerConfig{TrustPeerCredentials: true}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for TrustPeerCredentials without Path, got nil")
	}
}

func TestValidate_InvalidHostnamePort(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.HTTP = &HTTPServerConfig{Addr: "not a valid addr!!"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for malformed HTTP addr, got nil")
	}
}

func TestValidate_JWTRequiresAKeySource(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Auth.JWT = &JWTConfig{AllowedAlgorithms: []string{"RS256"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for jwt config with no symmetric_secret or jwks_uri, got nil")
	}
	if !strings.Contains(err.Error(), "symmetric_secret") {
		t.Fatalf("Validate() error = %v, want mention of symmetric_secret", err)
	}
}

func TestValidate_JWTWithJWKSURIIsValid(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Auth.JWT = &JWTConfig{AllowedAlgorithms: []string{"RS256"}, JWKSURI: "https://issuer.example/jwks.json"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}
