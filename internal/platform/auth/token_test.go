package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret")
	userID := uuid.New()

	tok, err := tokens.Issue(userID, "patient")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, ok := tokens.Verify(tok)
	if !ok {
		t.Fatal("expected token to verify")
	}
	if sess.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID, sess.UserID)
	}
	if sess.Role != "patient" {
		t.Errorf("expected role patient, got %s", sess.Role)
	}
}

func TestTokens_NormalizesRoleCase(t *testing.T) {
	tokens := NewTokens("test-secret")
	tok, err := tokens.Issue(uuid.New(), "Clinician")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, ok := tokens.Verify(tok)
	if !ok {
		t.Fatal("expected token to verify")
	}
	if sess.Role != "clinician" {
		t.Errorf("expected lowercased role, got %s", sess.Role)
	}
}

func TestTokens_Expired(t *testing.T) {
	tokens := &Tokens{secret: []byte("test-secret"), ttl: -time.Hour}
	tok, err := tokens.Issue(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tokens.Verify(tok); ok {
		t.Error("expected expired token to fail verification")
	}
}

func TestTokens_TamperedSignature(t *testing.T) {
	tokens := NewTokens("test-secret")
	tok, err := tokens.Issue(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("expected a three-part JWT, got %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]
	if _, ok := tokens.Verify(tampered); ok {
		t.Error("expected tampered token to fail verification")
	}
}

func TestTokens_WrongSecret(t *testing.T) {
	tok, err := NewTokens("secret-a").Issue(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := NewTokens("secret-b").Verify(tok); ok {
		t.Error("expected token signed with another secret to fail")
	}
}

func TestTokens_Garbage(t *testing.T) {
	tokens := NewTokens("test-secret")
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, ok := tokens.Verify(tok); ok {
			t.Errorf("expected %q to fail verification", tok)
		}
	}
}
