package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if !cfg.Server.Stdio {
		t.Error("Stdio should default to true when no transport is configured")
	}
	if cfg.Audit.Output != "stdout" {
		t.Errorf("Audit.Output = %q, want %q", cfg.Audit.Output, "stdout")
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled should default to true")
	}
	if cfg.RateLimit.Rate != 100 {
		t.Errorf("Rate default = %d, want 100", cfg.RateLimit.Rate)
	}
	if cfg.RateLimit.Burst != cfg.RateLimit.Rate {
		t.Errorf("Burst default = %d, want Rate (%d)", cfg.RateLimit.Burst, cfg.RateLimit.Rate)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("Session.Store = %q, want %q", cfg.Session.Store, "memory")
	}
}

func TestConfig_SetDefaults_JWT(t *testing.T) {
	t.Parallel()

	cfg := Config{Auth: AuthConfig{JWT: &JWTConfig{AllowedAlgorithms: []string{"RS256"}}}}
	cfg.SetDefaults()

	if cfg.Auth.JWT.Header != "Authorization" {
		t.Errorf("JWT.Header = %q, want %q", cfg.Auth.JWT.Header, "Authorization")
	}
	if cfg.Auth.JWT.Leeway != "0s" {
		t.Errorf("JWT.Leeway = %q, want %q", cfg.Auth.JWT.Leeway, "0s")
	}
	if cfg.Auth.JWT.JWKSCacheTTL != "5m" {
		t.Errorf("JWT.JWKSCacheTTL = %q, want %q", cfg.Auth.JWT.JWKSCacheTTL, "5m")
	}
}

func TestConfig_SetDefaults_StdioDisabledWhenTransportConfigured(t *testing.T) {
	t.Parallel()

	cfg := Config{Server: ServerConfig{HTTP: &HTTPServerConfig{Addr: ":8080"}}}
	cfg.SetDefaults()

	if cfg.Server.Stdio {
		t.Error("Stdio should not default to true once another transport is configured")
	}
}

func TestConfig_SetDefaults_WebSocketPath(t *testing.T) {
	t.Parallel()

	cfg := Config{Server: ServerConfig{WebSocket: &WebSocketServerConfig{Addr: ":8081"}}}
	cfg.SetDefaults()

	if cfg.Server.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want %q", cfg.Server.WebSocket.Path, "/ws")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Audit: AuditConfig{Output: "file:///var/log/custom.log"},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    50,
			Burst:   500,
		},
	}

	cfg.SetDefaults()

	if cfg.Audit.Output != "file:///var/log/custom.log" {
		t.Errorf("Audit.Output was overwritten: got %q", cfg.Audit.Output)
	}
	if cfg.RateLimit.Rate != 50 {
		t.Errorf("Rate was overwritten: got %d, want 50", cfg.RateLimit.Rate)
	}
	if cfg.RateLimit.Burst != 500 {
		t.Errorf("Burst was overwritten: got %d, want 500", cfg.RateLimit.Burst)
	}
}

func TestConfig_SetDevDefaults_AddsDevIdentity(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if len(cfg.Auth.Identities) != 1 || cfg.Auth.Identities[0].ID != "dev-user" {
		t.Errorf("expected a single dev-user identity, got %+v", cfg.Auth.Identities)
	}
}

func TestConfig_SetDevDefaults_NoOpWhenNotDevMode(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.SetDevDefaults()

	if len(cfg.Auth.Identities) != 0 {
		t.Error("SetDevDefaults should be a no-op when DevMode is false")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "turbomcp.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  log_level: debug\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "turbomcp.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  log_level: debug\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "turbomcp" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "turbomcp"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "turbomcp.yaml")
	ymlPath := filepath.Join(dir, "turbomcp.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  log_level: debug\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  log_level: info\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
