package service

import (
	"testing"
	"time"
)

func TestJWTIssuer_GenerateParse_RoundTrip(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", time.Hour)

	token, err := issuer.Generate(42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	playerID, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if playerID != 42 {
		t.Fatalf("got player id %d, want 42", playerID)
	}
}

func TestJWTIssuer_Parse_RejectsExpired(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", -time.Hour)

	token, err := issuer.Generate(7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := issuer.Parse(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTIssuer_Parse_RejectsWrongSecret(t *testing.T) {
	a := NewJWTIssuer("secret-a", time.Hour)
	b := NewJWTIssuer("secret-b", time.Hour)

	token, err := a.Generate(1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := b.Parse(token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestJWTIssuer_Parse_RejectsGarbage(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", time.Hour)
	if _, err := issuer.Parse("not.a.token"); err == nil {
		t.Fatal("expected garbage input to be rejected")
	}
}
