// Package config provides configuration types for the TurboMCP server
// runtime: which transports to listen on, session lifecycle bounds,
// authentication and rate-limit policy, audit sink selection, and
// observability backends.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration for a TurboMCP server process.
type Config struct {
	// Server selects which transports are active and at what log level.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Session bounds session lifetime and selects the store backend.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Auth configures API-key identity resolution and, optionally, JWT
	// bearer-token validation. Optional: when empty, every session is
	// anonymous (no tenant/role scoping).
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// RateLimit configures the optional per-identity/per-IP limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Origin restricts which Origin headers the WebSocket and
	// Streamable HTTP transports accept, per spec.md's CSWSH defenses.
	Origin OriginConfig `yaml:"origin" mapstructure:"origin"`

	// Audit configures where audit trail events are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Observability configures the tracing/metrics backends.
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`

	// DevMode enables permissive defaults and verbose logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig selects the active transports.
type ServerConfig struct {
	// LogLevel sets the minimum log level: debug, info, warn, error.
	// Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Stdio enables the stdio transport (the process's own stdin/stdout).
	// Defaults to true when no other transport is configured.
	Stdio bool `yaml:"stdio" mapstructure:"stdio"`

	// HTTP, if non-nil, enables the Streamable HTTP transport.
	HTTP *HTTPServerConfig `yaml:"http" mapstructure:"http"`

	// WebSocket, if non-nil, enables the bidirectional WebSocket transport.
	WebSocket *WebSocketServerConfig `yaml:"websocket" mapstructure:"websocket"`

	// TCP, if non-nil, enables the raw newline-delimited-JSON TCP transport.
	TCP *TCPServerConfig `yaml:"tcp" mapstructure:"tcp"`

	// Unix, if non-nil, enables the Unix domain socket transport.
	Unix *UnixServerConfig `yaml:"unix" mapstructure:"unix"`
}

// HTTPServerConfig configures the Streamable HTTP transport.
type HTTPServerConfig struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:8080").
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	// TLS, if non-nil, terminates TLS directly on this listener instead
	// of leaving it to a reverse proxy in front of the process.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// TLSConfig configures transport-terminated TLS. See
// internal/security/tlspolicy for the defaults this maps onto.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile   string `yaml:"cert_file" mapstructure:"cert_file" validate:"required_with=Enabled"`
	KeyFile    string `yaml:"key_file" mapstructure:"key_file" validate:"required_with=Enabled"`
	Insecure   bool   `yaml:"insecure" mapstructure:"insecure"`
	MinVersion uint16 `yaml:"min_version" mapstructure:"min_version"`
}

// WebSocketServerConfig configures the WebSocket transport. TLS
// termination for WebSocket is left to a reverse proxy (the wstransport
// listener accepts plain TCP only); see HTTPServerConfig.TLS for the
// transport that does terminate TLS directly.
type WebSocketServerConfig struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:8081").
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	// Path is the HTTP path the WebSocket upgrade is served on.
	// Defaults to "/ws".
	Path string `yaml:"path" mapstructure:"path"`
}

// TCPServerConfig configures the raw TCP transport.
type TCPServerConfig struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:9000").
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// UnixServerConfig configures the Unix domain socket transport.
type UnixServerConfig struct {
	// Path is the socket file path.
	Path string `yaml:"path" mapstructure:"path" validate:"required_with=TrustPeerCredentials"`
	// TrustPeerCredentials, when true, reads SO_PEERCRED off the socket
	// and trusts it for identity. Opt-in: see DESIGN.md's resolution of
	// the Unix peer-credentials open question.
	TrustPeerCredentials bool `yaml:"trust_peer_credentials" mapstructure:"trust_peer_credentials"`
}

// SessionConfig bounds session lifetime and selects the store backend.
type SessionConfig struct {
	// Store selects the session store backend: "memory" or "sqlite".
	// Defaults to "memory".
	Store string `yaml:"store" mapstructure:"store" validate:"omitempty,oneof=memory sqlite"`
	// SQLitePath is the database file path when Store is "sqlite".
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	// IdleTimeout is reset on every request (e.g., "30m"). Defaults to "30m".
	IdleTimeout string `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// MaxLifetime is fixed at session creation (e.g., "24h"). Defaults to "24h".
	MaxLifetime string `yaml:"max_lifetime" mapstructure:"max_lifetime"`
	// MaxPerRemoteAddr caps concurrent sessions per remote address.
	// 0 disables the cap. Defaults to 0.
	MaxPerRemoteAddr int `yaml:"max_per_remote_addr" mapstructure:"max_per_remote_addr" validate:"omitempty,min=1"`
	// BindRemoteAddr rejects a session presented from a different
	// remote address than the one it was created from. Defaults to false.
	BindRemoteAddr bool `yaml:"bind_remote_addr" mapstructure:"bind_remote_addr"`
	// RegenerateInterval, if set (e.g. "1h"), issues a session a new ID
	// once this long has elapsed since creation or the last
	// regeneration. Empty disables regeneration.
	RegenerateInterval string `yaml:"regenerate_interval" mapstructure:"regenerate_interval"`
}

// AuthConfig configures file-based API-key identities and, optionally,
// JWT/JWKS bearer-token validation. Per spec.md §4.8.4 the two modes
// are independent and combinable: a deployment can require either an
// API key or a JWT, both, or neither.
type AuthConfig struct {
	// Header is the header name the API-key transport middleware reads
	// from. Defaults to "X-API-Key".
	Header string `yaml:"header" mapstructure:"header"`
	// Required rejects unauthenticated requests at the transport layer
	// instead of letting an anonymous session through.
	Required bool `yaml:"required" mapstructure:"required"`
	// Identities defines the known identities.
	Identities []IdentityConfig `yaml:"identities" mapstructure:"identities" validate:"omitempty,dive"`
	// APIKeys maps key hashes to identities.
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
	// JWT enables bearer-token validation alongside (or instead of) the
	// API-key mode above. Nil disables it entirely.
	JWT *JWTConfig `yaml:"jwt" mapstructure:"jwt"`
	// ResourceMetadata is the RFC 9728 protected-resource metadata URL
	// advertised on every 401 challenge this server sends, from either
	// auth mode.
	ResourceMetadata string `yaml:"resource_metadata" mapstructure:"resource_metadata"`
	// Scope is the space-delimited scope advertised on the same 401
	// challenges.
	Scope string `yaml:"scope" mapstructure:"scope"`
}

// JWTConfig configures the JWT/JWKS bearer-token validator.
type JWTConfig struct {
	// Required rejects requests with no bearer token or a token that
	// fails validation. When false, a missing token lets the request
	// through unauthenticated (for a downstream check, or when combined
	// with a required API key) but a present, invalid token is still
	// rejected.
	Required bool `yaml:"required" mapstructure:"required"`
	// AllowedAlgorithms restricts accepted signing algorithms (e.g.
	// "RS256", "HS256"). Required — see jwt.Config.AllowedAlgorithms.
	AllowedAlgorithms []string `yaml:"allowed_algorithms" mapstructure:"allowed_algorithms" validate:"required,min=1"`
	// Issuer, when non-empty, must match the token's iss claim exactly.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// Audience, when non-empty, must appear in the token's aud claim.
	Audience string `yaml:"audience" mapstructure:"audience"`
	// Leeway is the clock-skew tolerance applied to exp/nbf checks, as a
	// duration string (e.g. "30s"). Defaults to "0s".
	Leeway string `yaml:"leeway" mapstructure:"leeway"`
	// SymmetricSecret, when set, verifies HMAC-signed tokens directly
	// instead of consulting JWKSURI.
	SymmetricSecret string `yaml:"symmetric_secret" mapstructure:"symmetric_secret"`
	// JWKSURI, when set, is fetched (and cached, see JWKSCacheTTL) to
	// verify RSA-signed tokens by kid.
	JWKSURI string `yaml:"jwks_uri" mapstructure:"jwks_uri"`
	// JWKSCacheTTL bounds how long a fetched JWKS document is reused
	// before a refetch. Defaults to "5m".
	JWKSCacheTTL string `yaml:"jwks_cache_ttl" mapstructure:"jwks_cache_ttl"`
	// IntrospectionURL, when set, is called (RFC 7662) after signature
	// and claim checks succeed; a token the endpoint reports inactive is
	// rejected even though it verified.
	IntrospectionURL string `yaml:"introspection_url" mapstructure:"introspection_url"`
	// Header is the header name to read the bearer token from. Defaults
	// to "Authorization".
	Header string `yaml:"header" mapstructure:"header"`
}

// IdentityConfig defines a file-based identity.
type IdentityConfig struct {
	// ID is the unique identifier for this identity.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`
	// Name is the human-readable name for this identity.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Roles are the roles assigned to this identity.
	Roles []string `yaml:"roles" mapstructure:"roles" validate:"required,min=1"`
	// TenantID scopes this identity's sessions to a per-tenant metrics
	// bucket (internal/observability). Optional.
	TenantID string `yaml:"tenant_id" mapstructure:"tenant_id"`
}

// APIKeyConfig defines an API key that authenticates as an identity.
type APIKeyConfig struct {
	// KeyHash is the argon2id or SHA-256 hash of the raw key, as produced
	// by auth.HashKey / auth.HashKeyArgon2id.
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required"`
	// IdentityID references an entry in Identities.
	IdentityID string `yaml:"identity_id" mapstructure:"identity_id" validate:"required"`
}

// RateLimitConfig configures the GCRA-based limiter.
type RateLimitConfig struct {
	// Enabled turns rate limiting on or off. Defaults to true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Rate is the sustained requests-per-Period limit. Defaults to 100.
	Rate int `yaml:"rate" mapstructure:"rate" validate:"omitempty,min=1"`
	// Burst is the maximum burst above Rate. Defaults to Rate.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`
	// Period is the window Rate applies over (e.g., "1m"). Defaults to "1m".
	Period string `yaml:"period" mapstructure:"period"`
}

// OriginConfig restricts which Origin header values are accepted.
type OriginConfig struct {
	// AllowedOrigins lists exact Origin values; entries are compared
	// verbatim, with no wildcard matching. Empty means only requests
	// without an Origin header are accepted (the strictest default, per
	// spec.md's CSWSH guidance).
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuditConfig configures where audit trail events are written.
type AuditConfig struct {
	// Output is "stdout" or "file://<absolute-path>". Defaults to "stdout".
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`
	// ChannelSize bounds the async writer's queue depth. Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`
}

// ObservabilityConfig configures tracing and metrics backends.
type ObservabilityConfig struct {
	// TracingEnabled turns on the OTel stdout span exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	// MetricsEnabled turns on the OTel stdout metric exporter alongside
	// the always-on Prometheus instruments.
	MetricsEnabled bool `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	// PrometheusAddr, if non-empty, serves /metrics on this address.
	PrometheusAddr string `yaml:"prometheus_addr" mapstructure:"prometheus_addr" validate:"omitempty,hostname_port"`
}

// SetDevDefaults applies permissive defaults for development mode,
// applied before validation so required fields are satisfied with
// minimal configuration.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	if len(c.Auth.Identities) == 0 {
		c.Auth.Identities = []IdentityConfig{
			{ID: "dev-user", Name: "Development User", Roles: []string{"admin"}},
		}
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if !c.Server.Stdio && c.Server.HTTP == nil && c.Server.WebSocket == nil &&
		c.Server.TCP == nil && c.Server.Unix == nil {
		c.Server.Stdio = true
	}
	if c.Server.WebSocket != nil && c.Server.WebSocket.Path == "" {
		c.Server.WebSocket.Path = "/ws"
	}

	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.IdleTimeout == "" {
		c.Session.IdleTimeout = "30m"
	}
	if c.Session.MaxLifetime == "" {
		c.Session.MaxLifetime = "24h"
	}

	if c.Auth.Header == "" {
		c.Auth.Header = "X-API-Key"
	}
	if c.Auth.JWT != nil {
		if c.Auth.JWT.Header == "" {
			c.Auth.JWT.Header = "Authorization"
		}
		if c.Auth.JWT.Leeway == "" {
			c.Auth.JWT.Leeway = "0s"
		}
		if c.Auth.JWT.JWKSCacheTTL == "" {
			c.Auth.JWT.JWKSCacheTTL = "5m"
		}
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}

	// Rate limiting defaults on, following the teacher's posture of
	// secure-by-default unless explicitly disabled in config.
	if !viper.IsSet("rate_limit.enabled") {
		c.RateLimit.Enabled = true
	}
	if c.RateLimit.Rate == 0 {
		c.RateLimit.Rate = 100
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.Rate
	}
	if c.RateLimit.Period == "" {
		c.RateLimit.Period = "1m"
	}
}
