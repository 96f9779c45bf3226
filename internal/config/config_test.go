package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Type != "mysql" {
		t.Errorf("expected mysql default, got %q", cfg.Database.Type)
	}
	if cfg.Crawler.Tier != "A" {
		t.Errorf("expected tier A default, got %q", cfg.Crawler.Tier)
	}
	if len(cfg.Crawler.TargetPriorities) != 1 || cfg.Crawler.TargetPriorities[0] != 1 {
		t.Errorf("tier A should crawl priority-1 targets only, got %v", cfg.Crawler.TargetPriorities)
	}
	if cfg.Crawler.LookaheadDays != 90 {
		t.Errorf("expected 90 lookahead days, got %d", cfg.Crawler.LookaheadDays)
	}
	if len(cfg.Identity.UserAgents) == 0 {
		t.Error("default config must carry user agents")
	}
	if cfg.Reconcile.MaxFlipConfidence <= cfg.Reconcile.MinFlipConfidence {
		t.Error("flip confidence band is inverted")
	}
	if cfg.Reconcile.ConfidenceCap >= 1.0 {
		t.Error("confidence cap must stay below certainty")
	}
}

func TestApplyTierPresets(t *testing.T) {
	b := DefaultConfig()
	b.Crawler.Tier = "B"
	b.applyTier()
	if len(b.Crawler.TargetPriorities) != 2 {
		t.Errorf("tier B should widen to priorities 1-2, got %v", b.Crawler.TargetPriorities)
	}
	if b.Scheduler.MaxConcurrency != 2 {
		t.Errorf("tier B concurrency: got %d", b.Scheduler.MaxConcurrency)
	}

	c := DefaultConfig()
	c.Crawler.Tier = "C"
	c.applyTier()
	if len(c.Crawler.TargetPriorities) != 3 {
		t.Errorf("tier C should cover all priorities, got %v", c.Crawler.TargetPriorities)
	}
	if c.Governor.DelayLowSeconds >= b.Governor.DelayLowSeconds {
		t.Error("tier C should pace faster than tier B")
	}

	// unknown tiers leave the defaults alone
	a := DefaultConfig()
	a.Crawler.Tier = "Z"
	a.applyTier()
	if len(a.Crawler.TargetPriorities) != 1 {
		t.Errorf("unknown tier must not change scope, got %v", a.Crawler.TargetPriorities)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Crawler.Tier != "A" {
		t.Errorf("expected default tier A, got %q", cfg.Crawler.Tier)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staywatch.yaml")
	data := []byte(`
database:
  type: postgres
  postgres:
    host: db.internal
    port: 5432
crawler:
  tier: B
  lookahead_days: 120
scheduler:
  calendar_run_time: "02:30"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.Type != "postgres" {
		t.Errorf("expected postgres, got %q", cfg.Database.Type)
	}
	if cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("expected db.internal, got %q", cfg.Database.Postgres.Host)
	}
	if cfg.Crawler.LookaheadDays != 120 {
		t.Errorf("expected 120, got %d", cfg.Crawler.LookaheadDays)
	}
	// the tier preset applies on top of file values
	if cfg.Scheduler.MaxConcurrency != 2 {
		t.Errorf("tier B preset not applied, concurrency %d", cfg.Scheduler.MaxConcurrency)
	}
	// unset fields keep their defaults
	if cfg.Scheduler.DetailRunDay != "MON" {
		t.Errorf("expected default MON, got %q", cfg.Scheduler.DetailRunDay)
	}
	if cfg.Scheduler.CalendarRunTime != "02:30" {
		t.Errorf("expected 02:30, got %q", cfg.Scheduler.CalendarRunTime)
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("crawler: [not: a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed YAML should fail loudly")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "10.0.0.9")
	t.Setenv("MARKET_API_KEY", "k-123")
	t.Setenv("CRAWL_TIER", "C")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.MySQL.Host != "10.0.0.9" || cfg.Database.Postgres.Host != "10.0.0.9" {
		t.Error("DB_HOST should override both backends")
	}
	if cfg.Crawler.APIKey != "k-123" {
		t.Errorf("expected API key override, got %q", cfg.Crawler.APIKey)
	}
	if cfg.Crawler.Tier != "C" || len(cfg.Crawler.TargetPriorities) != 3 {
		t.Errorf("CRAWL_TIER=C should re-apply the tier preset, got %q %v",
			cfg.Crawler.Tier, cfg.Crawler.TargetPriorities)
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()

	low, high := cfg.Governor.DelayRange()
	if low != 7*time.Second || high != 12*time.Second {
		t.Errorf("delay range: got %v..%v", low, high)
	}
	if cfg.Governor.GetCooldown() != 30*time.Minute {
		t.Errorf("cooldown: got %v", cfg.Governor.GetCooldown())
	}
	if cfg.Identity.GetRotateInterval() != 30*time.Minute {
		t.Errorf("rotate interval: got %v", cfg.Identity.GetRotateInterval())
	}
	if cfg.Scheduler.GetFetchTimeout() != 30*time.Second {
		t.Errorf("fetch timeout: got %v", cfg.Scheduler.GetFetchTimeout())
	}
	if cfg.Reconcile.GetMaxGap() != 72*time.Hour {
		t.Errorf("max gap: got %v", cfg.Reconcile.GetMaxGap())
	}
}
