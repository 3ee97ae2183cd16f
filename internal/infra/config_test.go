package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SplitThreshold != 25 {
		t.Fatalf("SplitThreshold = %d, want 25", cfg.SplitThreshold)
	}
	if cfg.ComposeMaxLen != 3000 {
		t.Fatalf("ComposeMaxLen = %d, want 3000", cfg.ComposeMaxLen)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("PollInterval = %v, want 3s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 100 {
		t.Fatalf("PollMaxAttempts = %d, want 100", cfg.PollMaxAttempts)
	}
	if cfg.RunwayBaseURL == "" || cfg.MiniMaxBaseURL == "" {
		t.Fatal("provider base URLs should default")
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without DATABASE_URL")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without JWT_SECRET")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("COMPOSE_SPLIT_THRESHOLD_SECONDS", "40")
	t.Setenv("JOB_POLL_INTERVAL_SECONDS", "5")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SplitThreshold != 40 {
		t.Fatalf("SplitThreshold = %d, want 40", cfg.SplitThreshold)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@example.com" {
		t.Fatalf("AdminEmails = %#v", cfg.AdminEmails)
	}
}
