package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	token, expiresAt, err := GenerateToken("org-42", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expiry must be in the future")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject != "org-42" {
		t.Fatalf("unexpected claims: %+v", parsed.Claims)
	}
}

func TestGenerateTokenWrongKeyFails(t *testing.T) {
	token, _, err := GenerateToken("org-42", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, err = jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		return []byte("other"), nil
	})
	if err == nil {
		t.Fatal("expected verification failure with the wrong key")
	}
}
