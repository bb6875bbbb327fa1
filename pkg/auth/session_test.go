package auth

import (
	"errors"
	"testing"
	"time"

	"bookmarket/pkg/domain"
)

func TestIssueAndVerify(t *testing.T) {
	sessions, err := NewSessions("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	user := domain.User{ID: "u1", Username: "alice", Admin: true}
	token, err := sessions.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := sessions.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" || !claims.Admin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := NewSessions("secret-a", time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	verifier, err := NewSessions("secret-b", time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	token, err := issuer.Issue(domain.User{ID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	sessions, err := NewSessions("test-secret", time.Nanosecond)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	token, err := sessions.Issue(domain.User{ID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := sessions.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	sessions, err := NewSessions("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	if _, err := sessions.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify = %v, want ErrInvalidToken", err)
	}
}

func TestNewSessionsRequiresSecret(t *testing.T) {
	if _, err := NewSessions("  ", time.Hour); err == nil {
		t.Fatal("blank secret should be rejected")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("secret1", hash) {
		t.Fatal("correct password should match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password should not match")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password = %v, want ErrPasswordTooShort", err)
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Fatalf("valid password = %v", err)
	}
}
