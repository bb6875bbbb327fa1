package util

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIPDirectPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:52011"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")

	// Without trusted proxies the forwarded headers are attacker-controlled.
	if got := ClientIP(req, nil); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want direct peer", got)
	}
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/auth/login", nil)
	req.RemoteAddr = "10.0.4.2:40000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := ClientIP(req, trusted); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want forwarded client", got)
	}

	// Trusted hops at the tail of the chain are skipped right to left.
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.4.9")
	if got := ClientIP(req, trusted); got != "203.0.113.7" {
		t.Fatalf("ClientIP with chain = %q, want first untrusted hop", got)
	}

	// A fully trusted chain falls back to the leftmost entry.
	req.Header.Set("X-Forwarded-For", "10.0.4.8, 10.0.4.9")
	if got := ClientIP(req, trusted); got != "10.0.4.8" {
		t.Fatalf("ClientIP all-trusted = %q", got)
	}
}

func TestClientIPRealIPFallback(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.4.2"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/books", nil)
	req.RemoteAddr = "10.0.4.2:40000"
	req.Header.Set("X-Real-IP", "203.0.113.7")
	if got := ClientIP(req, trusted); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want X-Real-IP", got)
	}
}

func TestClientIPIgnoresGarbageForwardedEntries(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/books", nil)
	req.RemoteAddr = "10.0.4.2:40000"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.7")
	if got := ClientIP(req, trusted); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q", got)
	}
}

func TestClientIPUnparseableRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/books", nil)
	req.RemoteAddr = "pipe"
	if got := ClientIP(req, nil); got != "pipe" {
		t.Fatalf("ClientIP = %q, want raw remote addr", got)
	}
}

func TestNewTrustedProxiesValidation(t *testing.T) {
	if tp, err := NewTrustedProxies(nil); err != nil || tp != nil {
		t.Fatalf("empty input = %v, %v; want nil, nil", tp, err)
	}
	if tp, err := NewTrustedProxies([]string{" ", ""}); err != nil || tp != nil {
		t.Fatalf("blank entries = %v, %v; want nil, nil", tp, err)
	}
	if _, err := NewTrustedProxies([]string{"10.0.0.0/99"}); err == nil {
		t.Fatal("bad CIDR should fail")
	}
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("bad address should fail")
	}

	tp, err := NewTrustedProxies([]string{"192.0.2.1", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("mixed entries: %v", err)
	}
	if !tp.Contains(netip.MustParseAddr("192.0.2.1")) {
		t.Fatal("exact address should be trusted")
	}
	if !tp.Contains(netip.MustParseAddr("2001:db8::99")) {
		t.Fatal("address in v6 range should be trusted")
	}
	if tp.Contains(netip.MustParseAddr("192.0.2.2")) {
		t.Fatal("neighboring address should not be trusted")
	}
}
