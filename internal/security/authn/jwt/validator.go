// Package jwt implements spec.md §4.8.4's JWT/JWKS authentication mode:
// algorithm allow-listing, audience/issuer/expiry/not-before checks with
// configurable leeway, keys from either a static symmetric secret or a
// per-URI cached JWKS fetch by kid, and optional introspection-endpoint
// revocation checking.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrRevoked is returned when Introspector reports a token inactive.
var ErrRevoked = errors.New("jwt: token revoked")

// Claims is the subset of registered claims this validator surfaces to
// callers after a successful Validate.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	Raw       jwt.MapClaims
}

// Introspector checks a token against an OAuth 2.0 introspection
// endpoint (RFC 7662). Optional; when nil, Validate skips revocation
// checking entirely.
type Introspector interface {
	Active(ctx context.Context, rawToken string) (bool, error)
}

// Config configures a Validator.
type Config struct {
	// AllowedAlgorithms restricts accepted signing algorithms (e.g.
	// "RS256", "HS256"). Required — golang-jwt validates "none" and
	// algorithm-confusion attacks only when the caller pins this list.
	AllowedAlgorithms []string
	// Issuer, when non-empty, must match the token's iss claim exactly.
	Issuer string
	// Audience, when non-empty, must appear in the token's aud claim.
	Audience string
	// Leeway is the clock-skew tolerance applied to exp/nbf checks.
	Leeway time.Duration
	// SymmetricSecret, when set, is used for HMAC algorithms instead of
	// consulting KeySource.
	SymmetricSecret []byte
	// KeySource resolves a kid to a public key for asymmetric
	// algorithms (RSA/ECDSA). Required unless SymmetricSecret covers
	// every token this Validator will see.
	KeySource KeySource
	// Introspector, when set, is consulted after signature/claim
	// validation succeeds; a false or error result rejects the token.
	Introspector Introspector
}

// KeySource resolves a key id to a verification key, typically backed
// by a JWKSCache.
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

// Validator validates bearer tokens per Config.
type Validator struct {
	cfg Config
}

// NewValidator builds a Validator. Panics if cfg has no AllowedAlgorithms,
// since accepting any algorithm (including "none") is never safe.
func NewValidator(cfg Config) *Validator {
	if len(cfg.AllowedAlgorithms) == 0 {
		panic("jwt: AllowedAlgorithms must be non-empty")
	}
	return &Validator{cfg: cfg}
}

// Validate parses and verifies rawToken, returning its claims on success.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.cfg.AllowedAlgorithms),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if v.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.cfg.Audience))
	}

	token, err := jwt.Parse(rawToken, v.keyFunc(ctx), parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("jwt: token invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("jwt: unexpected claims type")
	}

	if v.cfg.Introspector != nil {
		active, err := v.cfg.Introspector.Active(ctx, rawToken)
		if err != nil {
			return nil, fmt.Errorf("jwt: introspection: %w", err)
		}
		if !active {
			return nil, ErrRevoked
		}
	}

	return claimsFromMap(claims)
}

func (v *Validator) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, isHMAC := token.Method.(*jwt.SigningMethodHMAC); isHMAC {
			if v.cfg.SymmetricSecret == nil {
				return nil, errors.New("jwt: no symmetric secret configured for HMAC token")
			}
			return v.cfg.SymmetricSecret, nil
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwt: token has no kid header")
		}
		if v.cfg.KeySource == nil {
			return nil, errors.New("jwt: no key source configured for asymmetric token")
		}
		return v.cfg.KeySource.Key(ctx, kid)
	}
}

func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	c := &Claims{Raw: m}
	if sub, ok := m["sub"].(string); ok {
		c.Subject = sub
	}
	if iss, ok := m["iss"].(string); ok {
		c.Issuer = iss
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	aud, err := m.GetAudience()
	if err == nil {
		c.Audience = aud
	}
	return c, nil
}
