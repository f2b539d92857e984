package authservice

import (
	"testing"
	"time"
)

func TestSignAndParseAccessToken(t *testing.T) {
	token, expiresAt, err := SignAccessToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("SignAccessToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt in the past: %v", expiresAt)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Type != "access" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseToken_RejectsGarbage(t *testing.T) {
	if _, err := ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestParseToken_RejectsExpired(t *testing.T) {
	token, _, err := SignAccessToken(1, "bob", -time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken error: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestRefreshTokenType(t *testing.T) {
	token, _, err := SignRefreshToken(7, "carol", time.Hour)
	if err != nil {
		t.Fatalf("SignRefreshToken error: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.Type != "refresh" {
		t.Fatalf("Type = %q, want refresh", claims.Type)
	}
}
