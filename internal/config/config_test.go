package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REFRESH_PERIOD_MS", "")
	t.Setenv("DEBOUNCE_MS", "")
	t.Setenv("DEFAULT_RANGE_MODE", "")

	cfg := Load()
	if cfg.RefreshPeriod != 20*time.Second {
		t.Fatalf("expected 20s refresh period, got %v", cfg.RefreshPeriod)
	}
	if cfg.DebounceWindow != 120*time.Millisecond {
		t.Fatalf("expected 120ms debounce, got %v", cfg.DebounceWindow)
	}
	if cfg.DefaultRangeMode != "7d" {
		t.Fatalf("expected 7d default range, got %q", cfg.DefaultRangeMode)
	}
	if cfg.ProductCacheTTL != 60*time.Second {
		t.Fatalf("expected 60s cache ttl, got %v", cfg.ProductCacheTTL)
	}
}

func TestLoadRejectsGarbageDurations(t *testing.T) {
	t.Setenv("REFRESH_PERIOD_MS", "not-a-number")
	t.Setenv("DEBOUNCE_MS", "-5")

	cfg := Load()
	if cfg.RefreshPeriod != 20*time.Second {
		t.Fatalf("expected fallback refresh period, got %v", cfg.RefreshPeriod)
	}
	if cfg.DebounceWindow != 120*time.Millisecond {
		t.Fatalf("expected fallback debounce, got %v", cfg.DebounceWindow)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("API_URL", "https://api.mitienda.example ")
	t.Setenv("REFRESH_PERIOD_MS", "5000")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")

	cfg := Load()
	if cfg.APIBaseURL != "https://api.mitienda.example" {
		t.Fatalf("expected trimmed api url, got %q", cfg.APIBaseURL)
	}
	if cfg.RefreshPeriod != 5*time.Second {
		t.Fatalf("expected 5s refresh period, got %v", cfg.RefreshPeriod)
	}
	if cfg.AccessTokenTTLMinutes != 60 {
		t.Fatalf("expected 60 minute token ttl, got %d", cfg.AccessTokenTTLMinutes)
	}
}
