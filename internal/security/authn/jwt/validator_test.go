package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestValidateAcceptsValidHS256Token(t *testing.T) {
	secret := []byte("test-secret-key-material")
	v := NewValidator(Config{
		AllowedAlgorithms: []string{"HS256"},
		Issuer:            "https://issuer.example",
		Audience:          "turbomcp",
		Leeway:            5 * time.Second,
		SymmetricSecret:   secret,
	})

	raw := signHS256(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://issuer.example",
		"aud": "turbomcp",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	claims, err := v.Validate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("Subject = %q, want user-123", claims.Subject)
	}
	if claims.Issuer != "https://issuer.example" {
		t.Fatalf("Issuer = %q", claims.Issuer)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret-key-material")
	v := NewValidator(Config{
		AllowedAlgorithms: []string{"HS256"},
		SymmetricSecret:   secret,
	})

	raw := signHS256(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := v.Validate(context.Background(), raw); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	secret := []byte("test-secret-key-material")
	v := NewValidator(Config{
		AllowedAlgorithms: []string{"HS256"},
		Issuer:            "https://expected.example",
		SymmetricSecret:   secret,
	})

	raw := signHS256(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://attacker.example",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Validate(context.Background(), raw); err == nil {
		t.Fatal("expected error for mismatched issuer")
	}
}

func TestValidateRejectsDisallowedAlgorithm(t *testing.T) {
	secret := []byte("test-secret-key-material")
	v := NewValidator(Config{
		AllowedAlgorithms: []string{"RS256"},
		SymmetricSecret:   secret,
	})

	raw := signHS256(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Validate(context.Background(), raw); err == nil {
		t.Fatal("expected error: token signed with HS256 but only RS256 allowed")
	}
}

func TestValidateRejectsRevokedToken(t *testing.T) {
	secret := []byte("test-secret-key-material")
	v := NewValidator(Config{
		AllowedAlgorithms: []string{"HS256"},
		SymmetricSecret:   secret,
		Introspector:      fakeIntrospector{active: false},
	})

	raw := signHS256(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Validate(context.Background(), raw)
	if err == nil {
		t.Fatal("expected revocation error")
	}
}

type fakeIntrospector struct{ active bool }

func (f fakeIntrospector) Active(context.Context, string) (bool, error) { return f.active, nil }

func TestNewValidatorPanicsWithNoAlgorithms(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty AllowedAlgorithms")
		}
	}()
	NewValidator(Config{})
}
