package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "bookmarket:test", limit, window)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, redis
}

func TestAllowWithinQuota(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	const key = "login:203.0.113.9"
	if !limiter.Allow(key) {
		t.Fatal("first login attempt should pass")
	}
	if !limiter.Allow(key) {
		t.Fatal("second login attempt should pass")
	}
	if limiter.Allow(key) {
		t.Fatal("third login attempt should be blocked")
	}
	if !limiter.Allow("login:198.51.100.4") {
		t.Fatal("a different client must have its own window")
	}
}

func TestWindowRolls(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 100*time.Millisecond)

	const key = "register:203.0.113.9"
	if !limiter.Allow(key) {
		t.Fatal("first attempt should pass")
	}
	// Sleeping past two full windows guarantees a new slot regardless of
	// where inside the first window the attempt landed.
	time.Sleep(250 * time.Millisecond)
	if !limiter.Allow(key) {
		t.Fatal("attempt in a later window should pass")
	}
}

func TestFailsClosedOnRedisError(t *testing.T) {
	limiter, redis := newTestLimiter(t, 5, time.Minute)
	redis.Close()

	if limiter.Allow("login:203.0.113.9") {
		t.Fatal("limiter must deny when redis is unreachable")
	}
}

func TestConstructorValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "bookmarket:test", 5, time.Minute); err == nil {
		t.Fatal("empty redis addr should be rejected")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "bookmarket:test", 0, time.Minute); err == nil {
		t.Fatal("zero limit should be rejected")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "bookmarket:test", 5, 0); err == nil {
		t.Fatal("zero window should be rejected")
	}
}
