package config

import (
	"testing"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_NotifierRequiresBaseURLWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("NOTIFIER_ENABLED", "true")
	t.Setenv("NOTIFIER_BASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when NOTIFIER_ENABLED=true without NOTIFIER_BASE_URL")
	}
}

func TestLoad_LockTTLDefaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LockStartTTL != 30*time.Second {
		t.Fatalf("unexpected LockStartTTL: %s", cfg.LockStartTTL)
	}
	if cfg.LockEndTTL != 60*time.Second {
		t.Fatalf("unexpected LockEndTTL: %s", cfg.LockEndTTL)
	}
	if cfg.LockEndTTL <= cfg.LockStartTTL {
		t.Fatalf("end lock TTL should outlive start lock TTL")
	}
}

func TestLoadEngagement_EnvOverrides(t *testing.T) {
	t.Setenv("CONTEST_ROUND_DURATION_HOURS", "24")
	t.Setenv("MAX_POINTS_PER_DAY", "250")

	cfg, err := LoadEngagement()
	if err != nil {
		t.Fatalf("load engagement config: %v", err)
	}
	if cfg.Contest.RoundDurationHours != 24 {
		t.Fatalf("unexpected RoundDurationHours: %d", cfg.Contest.RoundDurationHours)
	}
	if cfg.RateLimit.MaxPointsPerDay != 250 {
		t.Fatalf("unexpected MaxPointsPerDay: %d", cfg.RateLimit.MaxPointsPerDay)
	}
}

func TestLoadEngagement_RejectsInvalidOverride(t *testing.T) {
	t.Setenv("CONTEST_ROUND_DURATION_HOURS", "0")

	if _, err := LoadEngagement(); err == nil {
		t.Fatalf("expected validation error for zero round duration")
	}
}

func TestEngagementConfig_Rule(t *testing.T) {
	cfg := DefaultEngagement()

	rule, ok := cfg.Rule(engagement.PlatformTelegram, engagement.TypeMessage)
	if !ok {
		t.Fatalf("expected telegram MESSAGE rule")
	}
	if rule.Points != 2 || rule.CooldownSeconds != 60 || rule.DailyLimit != 20 {
		t.Fatalf("unexpected telegram MESSAGE rule: %+v", rule)
	}

	if _, ok := cfg.Rule(engagement.PlatformTwitter, engagement.TypeMessage); ok {
		t.Fatalf("twitter MESSAGE should not be configured")
	}
}
