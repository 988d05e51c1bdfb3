package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"horde-server/internal/config"
)

func TestIsAllowedOrigin(t *testing.T) {
	defer SetAllowedOrigins(AllowedOrigins)
	SetAllowedOrigins([]string{"https://horde.example.com", "http://10.0.0.5:*"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"http://localhost.evil.com", false},
		{"https://horde.example.com", true},
		{"https://evil.horde.example.com", false},
		{"http://10.0.0.5:8080", true},
		{"http://10.0.0.50:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := IsAllowedOrigin(tt.origin); got != tt.want {
				t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:80", "198.51.100.7"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPRateLimiterPerIP(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other IPs have their own bucket")
	}

	stats := rl.GetStats()
	if stats["allowed"] != 3 || stats["rejected"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("stale")
	rl.Allow("fresh")
	entry, _ := rl.clients.Load("stale")
	entry.(*clientBuckets).lastSeen.Store(time.Now().Add(-3 * time.Hour).UnixNano())

	rl.cleanup()
	if _, ok := rl.clients.Load("stale"); ok {
		t.Error("stale client should be removed")
	}
	if _, ok := rl.clients.Load("fresh"); !ok {
		t.Error("recent client should be kept")
	}
}

func TestIPRateLimiterZeroValuesFallBack(t *testing.T) {
	// A zero interval must not panic the cleanup ticker
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 5, Burst: 5})
	defer rl.Stop()

	cfg := rl.Config()
	if cfg.CleanupInterval != DefaultRateLimitConfig.CleanupInterval {
		t.Errorf("expected default cleanup interval, got %v", cfg.CleanupInterval)
	}
	if cfg.ExpensivePerSecond != 5 || cfg.ExpensiveBurst != 5 {
		t.Errorf("expensive bucket should copy the general one, got %+v", cfg)
	}
}

func TestIPRateLimiterExpensiveBucket(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond:  100,
		Burst:              100,
		ExpensivePerSecond: 0.25,
		ExpensiveBurst:     1,
		CleanupInterval:    time.Hour,
	})
	defer rl.Stop()

	if !rl.AllowExpensive("a") {
		t.Fatal("first expensive request should pass")
	}
	if rl.AllowExpensive("a") {
		t.Error("second expensive request should be limited")
	}
	if !rl.Allow("a") {
		t.Error("general bucket is separate from the expensive one")
	}
	if !rl.AllowExpensive("b") {
		t.Error("other IPs have their own expensive bucket")
	}

	stats := rl.GetStats()
	if stats["expensiveAllowed"] != 2 || stats["expensiveRejected"] != 1 || stats["allowed"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
	if got := rl.retryAfter(costExpensive); got != "4" {
		t.Errorf("expected Retry-After 4 at 0.25/s, got %s", got)
	}
	if got := rl.retryAfter(costGeneral); got != "1" {
		t.Errorf("expected Retry-After 1 for the general bucket, got %s", got)
	}
}

func TestRateLimitConfigFrom(t *testing.T) {
	cfg := RateLimitConfigFrom(config.DefaultRequestLimits())
	if cfg.ExpensivePerSecond >= cfg.RequestsPerSecond {
		t.Errorf("expensive bucket should refill slower: %+v", cfg)
	}
	if cfg.CleanupInterval <= 0 {
		t.Error("cleanup interval must be set")
	}
}

func TestWebSocketRateLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)

	if !wrl.Allow("ip") || !wrl.Allow("ip") {
		t.Fatal("first two connections should be allowed")
	}
	if wrl.Allow("ip") {
		t.Error("third connection should be rejected")
	}
	if got := wrl.GetConnectionCount("ip"); got != 2 {
		t.Errorf("expected 2 connections, got %d", got)
	}

	wrl.Release("ip")
	if !wrl.Allow("ip") {
		t.Error("released slot should be reusable")
	}
	if wrl.GetStats()["rejected"] != 1 {
		t.Errorf("expected 1 rejection, got %v", wrl.GetStats())
	}

	wrl.Release("ip")
	wrl.Release("ip")
	wrl.Release("ip") // extra release is ignored
	if got := wrl.GetConnectionCount("ip"); got != 0 {
		t.Errorf("expected 0 connections, got %d", got)
	}
	if wrl.GetStats()["ips"] != 0 {
		t.Errorf("idle IPs should be dropped, got %v", wrl.GetStats())
	}
}
