package otp

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	redis := miniredis.RunT(t)
	store, err := NewStore(redis.Addr(), "")
	if err != nil {
		t.Fatalf("new otp store: %v", err)
	}
	return store, redis
}

func TestCreateAndVerifyChallenge(t *testing.T) {
	store, _ := newTestStore(t)
	code, ttl, err := store.CreateChallenge("reader@example.com")
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	if ttl <= 0 {
		t.Fatalf("ttl = %d, want positive", ttl)
	}
	if err := store.VerifyChallenge("Reader@Example.com", code); err != nil {
		t.Fatalf("verify challenge: %v", err)
	}
	// Challenge is single-use.
	if err := store.VerifyChallenge("reader@example.com", code); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("second verify = %v, want ErrChallengeInvalid", err)
	}
}

func TestCreateChallengeThrottlesResends(t *testing.T) {
	store, _ := newTestStore(t)
	if _, _, err := store.CreateChallenge("reader@example.com"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, _, err := store.CreateChallenge("reader@example.com"); !errors.Is(err, ErrSendRateLimited) {
		t.Fatalf("second create = %v, want ErrSendRateLimited", err)
	}
}

func TestVerifyChallengeWrongCode(t *testing.T) {
	store, _ := newTestStore(t)
	if _, _, err := store.CreateChallenge("reader@example.com"); err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if err := store.VerifyChallenge("reader@example.com", "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("verify = %v, want ErrCodeInvalid", err)
	}
}

func TestVerifyChallengeAttemptCap(t *testing.T) {
	store, _ := newTestStore(t)
	code, _, err := store.CreateChallenge("reader@example.com")
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := store.VerifyChallenge("reader@example.com", "000000"); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("attempt %d = %v, want ErrCodeInvalid", i, err)
		}
	}
	// Challenge is gone after the cap, even for the right code.
	if err := store.VerifyChallenge("reader@example.com", code); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("post-cap verify = %v, want ErrChallengeInvalid", err)
	}
}

func TestVerifyChallengeExpired(t *testing.T) {
	store, redis := newTestStore(t)
	code, _, err := store.CreateChallenge("reader@example.com")
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	redis.FastForward(store.challengeTTL + store.resendAfter)
	if err := store.VerifyChallenge("reader@example.com", code); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expired verify = %v, want ErrChallengeInvalid", err)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"reader@example.com": "r***r@example.com",
		"ab@example.com":     "a***@example.com",
		"a@example.com":      "a***@example.com",
		"not-an-email":       "not-an-email",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
