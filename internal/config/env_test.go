package config

import (
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", "")
	t.Setenv("HOLD_TTL", "")
	t.Setenv("AGENT_COMMISSION_BPS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	env := LoadEnv()
	if env.AppAddr != ":8080" {
		t.Fatalf("AppAddr got %q", env.AppAddr)
	}
	if env.HoldTTL != defaultHoldTTL {
		t.Fatalf("HoldTTL got %s", env.HoldTTL)
	}
	if env.CommissionBPS != 100 {
		t.Fatalf("CommissionBPS got %d", env.CommissionBPS)
	}
	if len(env.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no origins, got %v", env.CORSAllowedOrigins)
	}
}

func TestLoadEnvClampsHoldTTL(t *testing.T) {
	t.Setenv("HOLD_TTL", "10s")
	if got := LoadEnv().HoldTTL; got != time.Minute {
		t.Fatalf("short ttl should clamp to 1m, got %s", got)
	}
	t.Setenv("HOLD_TTL", "2h")
	if got := LoadEnv().HoldTTL; got != 30*time.Minute {
		t.Fatalf("long ttl should clamp to 30m, got %s", got)
	}
	t.Setenv("HOLD_TTL", "garbage")
	if got := LoadEnv().HoldTTL; got != defaultHoldTTL {
		t.Fatalf("invalid ttl should fall back, got %s", got)
	}
}

func TestLoadEnvOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	got := LoadEnv().CORSAllowedOrigins
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", got)
	}
}
