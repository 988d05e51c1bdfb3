package config

import "testing"

func TestRequestLimitsFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "25")
	t.Setenv("RATE_LIMIT_EXPENSIVE_BURST", "2")
	t.Setenv("RATE_LIMIT_EXPENSIVE_RPS", "not-a-number")

	got := RequestLimitsFromEnv()
	want := DefaultRequestLimits()
	want.RequestsPerSecond = 25
	want.ExpensiveBurst = 2

	if got != want {
		t.Errorf("RequestLimitsFromEnv() = %+v, want %+v", got, want)
	}
}

func TestDefaultRequestLimitsAreTighterForExpensiveRoutes(t *testing.T) {
	l := DefaultRequestLimits()
	if l.ExpensivePerSecond >= l.RequestsPerSecond || l.ExpensiveBurst >= l.Burst {
		t.Errorf("expensive bucket should be tighter than the general one: %+v", l)
	}
}

func TestServerFromEnvSplitsCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.example.com ,,https://b.example.com")

	cfg := ServerFromEnv()
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example.com" || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("unexpected origins: %q", cfg.CORSOrigins)
	}
}
