package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/config"
	"github.com/google/uuid"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Secret: "secret",
		Issuer: "bazarche",
		TTL:    time.Hour,
	}
}

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := testSessionConfig()
	now := time.Now().UTC()
	sessionID := uuid.New()

	token, err := MintSessionToken(cfg, now, sessionID)
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}

	claims, err := ParseSessionToken(cfg, token)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if claims.SessionID != sessionID {
		t.Fatalf("expected sid %s, got %s", sessionID, claims.SessionID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected expiry after issue time")
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}
}

func TestParseSessionTokenRejectsWrongSecret(t *testing.T) {
	cfg := testSessionConfig()
	token, err := MintSessionToken(cfg, time.Now(), uuid.New())
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}

	other := cfg
	other.Secret = "other"
	if _, err := ParseSessionToken(other, token); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestParseSessionTokenRejectsExpired(t *testing.T) {
	cfg := testSessionConfig()
	token, err := MintSessionToken(cfg, time.Now().Add(-2*time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	_, err = ParseSessionToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestMintSessionTokenValidatesConfig(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Secret = ""
	if _, err := MintSessionToken(cfg, time.Now(), uuid.New()); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := MintSessionToken(testSessionConfig(), time.Now(), uuid.Nil); err == nil {
		t.Fatalf("expected nil session id error")
	}
}
