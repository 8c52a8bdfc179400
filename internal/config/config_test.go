package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldclear.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
throughput:
  warning_threshold: 17.5
  cooldown: 90s
items:
  lifetime_seconds: 600
  allow_list: [diamond, " netherite_ingot "]
  scopes:
    nether:
      enabled: false
cleanup:
  rules:
    - name: hourly-monsters
      interval: 1h
      categories: [monsters, clusters]
      broadcast: false
    - interval: 10m
database:
  type: sqlite
`)
	cfg, warns, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if cfg.Throughput.WarningThreshold != 17.5 || cfg.Throughput.CriticalThreshold != 15 {
		t.Errorf("thresholds = %v/%v", cfg.Throughput.WarningThreshold, cfg.Throughput.CriticalThreshold)
	}
	if cfg.Throughput.Cooldown != 90*time.Second {
		t.Errorf("cooldown = %s", cfg.Throughput.Cooldown)
	}
	if got := strings.Join(cfg.Items.AllowList, ","); got != "DIAMOND,NETHERITE_INGOT" {
		t.Errorf("allow list = %s", got)
	}
	if cfg.ScopeEnabled("nether") || !cfg.ScopeEnabled("overworld") {
		t.Errorf("scope switches not applied")
	}
	if len(cfg.Cleanup.Rules) != 2 {
		t.Fatalf("rules = %+v", cfg.Cleanup.Rules)
	}
	r0, r1 := cfg.Cleanup.Rules[0], cfg.Cleanup.Rules[1]
	if r0.Interval != time.Hour || r0.BroadcastEnabled() || len(r0.Categories) != 2 {
		t.Errorf("rule 0 = %+v", r0)
	}
	if r1.Name != "rule-2" || !r1.BroadcastEnabled() || r1.Categories[0] != "items" {
		t.Errorf("rule 1 = %+v", r1)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.PoolSize != 10 {
		t.Errorf("database = %+v", cfg.Database)
	}
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, warns, err := Load(filepath.Join("..", "..", "config", "worldclear.yaml"), "")
	if err != nil {
		t.Fatalf("load sample config: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("sample config should not need corrections: %v", warns)
	}
	if len(cfg.Cleanup.Rules) != 3 {
		t.Errorf("expected 3 rules, got %d", len(cfg.Cleanup.Rules))
	}
	if cfg.ScopeEnabled("end") {
		t.Errorf("expected end scope to be disabled")
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
items:
  lifetime_secs: 10
`)
	if _, _, err := Load(path, ""); err == nil {
		t.Fatalf("expected schema error for unknown key")
	}
}

func TestLoadConfig_WrongType(t *testing.T) {
	path := writeConfig(t, `
throughput:
  warning_threshold: "fast"
`)
	if _, _, err := Load(path, ""); err == nil {
		t.Fatalf("expected schema error for wrong type")
	}
}

func TestLoadConfig_BadCategory(t *testing.T) {
	path := writeConfig(t, `
cleanup:
  rules:
    - interval: 5m
      categories: [lava]
`)
	if _, _, err := Load(path, ""); err == nil {
		t.Fatalf("expected schema error for unknown category")
	}
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, warns, err := Load(writeConfig(t, ""), "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(warns) != 0 || cfg.Items.LifetimeSeconds != 300 {
		t.Fatalf("expected defaults, got %+v %v", cfg.Items, warns)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNormalizeCorrections(t *testing.T) {
	cfg := Default()
	cfg.Throughput.WarningThreshold = 25
	cfg.Throughput.CriticalThreshold = 19
	cfg.Throughput.SampleInterval = 0
	cfg.Items.LifetimeSeconds = -5
	cfg.Items.WarningBeforeClear = 900
	cfg.Entities.ClusterRadius = 0
	cfg.Database.PoolSize = 0
	cfg.Cleanup.Rules = []Rule{{Name: "broken"}}

	warns := cfg.Normalize()

	if cfg.Throughput.WarningThreshold != 18 {
		t.Errorf("warning threshold = %v", cfg.Throughput.WarningThreshold)
	}
	if cfg.Throughput.CriticalThreshold != 16 {
		t.Errorf("critical threshold = %v, want warning-2", cfg.Throughput.CriticalThreshold)
	}
	if cfg.Throughput.SampleInterval != time.Second {
		t.Errorf("sample interval = %s", cfg.Throughput.SampleInterval)
	}
	if cfg.Items.LifetimeSeconds != 300 {
		t.Errorf("lifetime = %d", cfg.Items.LifetimeSeconds)
	}
	if cfg.Items.WarningBeforeClear != 30 {
		t.Errorf("warning before clear = %d", cfg.Items.WarningBeforeClear)
	}
	if cfg.Entities.ClusterRadius != 5 || cfg.Database.PoolSize != 10 {
		t.Errorf("entities/database not corrected: %+v %+v", cfg.Entities, cfg.Database)
	}
	if len(cfg.Cleanup.Rules) != 0 {
		t.Errorf("rule without interval kept: %+v", cfg.Cleanup.Rules)
	}
	if len(warns) != 8 {
		t.Errorf("expected 8 warnings, got %d: %v", len(warns), warns)
	}
}

func TestNormalizeClampsShortIntervals(t *testing.T) {
	cfg := Default()
	cfg.Throughput.SampleInterval = time.Nanosecond
	cfg.Dashboard.RefreshInterval = time.Millisecond
	cfg.Cleanup.Rules = []Rule{{Name: "hot", Interval: time.Nanosecond}, {Name: "ok", Interval: time.Minute}}

	warns := cfg.Normalize()

	if cfg.Throughput.SampleInterval != MinSampleInterval {
		t.Errorf("sample interval = %s, want %s", cfg.Throughput.SampleInterval, MinSampleInterval)
	}
	if cfg.Dashboard.RefreshInterval != MinRefreshInterval {
		t.Errorf("refresh interval = %s, want %s", cfg.Dashboard.RefreshInterval, MinRefreshInterval)
	}
	if len(cfg.Cleanup.Rules) != 2 || cfg.Cleanup.Rules[0].Interval != MinRuleInterval || cfg.Cleanup.Rules[1].Interval != time.Minute {
		t.Errorf("rules not clamped: %+v", cfg.Cleanup.Rules)
	}
	if len(warns) != 3 {
		t.Errorf("expected 3 warnings, got %d: %v", len(warns), warns)
	}
}

func TestLoadConfig_NanosecondRule(t *testing.T) {
	path := writeConfig(t, `
cleanup:
  rules:
    - name: hot
      interval: 1ns
`)
	cfg, warns, err := Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cleanup.Rules[0].Interval != MinRuleInterval {
		t.Errorf("interval = %s, want %s", cfg.Cleanup.Rules[0].Interval, MinRuleInterval)
	}
	if len(warns) != 1 || !strings.Contains(warns[0], "below") {
		t.Errorf("unexpected warnings: %v", warns)
	}
}

func TestNormalizeShortLifetime(t *testing.T) {
	cfg := Default()
	cfg.Items.LifetimeSeconds = 20
	cfg.Items.WarningBeforeClear = 25
	warns := cfg.Normalize()
	if cfg.Items.WarningBeforeClear != 2 {
		t.Errorf("warning before clear = %d, want 2", cfg.Items.WarningBeforeClear)
	}
	if len(warns) != 2 {
		t.Errorf("warnings = %v", warns)
	}
}

func TestDefaultHasNoWarnings(t *testing.T) {
	if warns := Default().Normalize(); len(warns) != 0 {
		t.Fatalf("defaults should be valid: %v", warns)
	}
}

func TestPublished(t *testing.T) {
	kv := Default().Published()
	found := false
	for _, e := range kv {
		if e.Key == "items.lifetime_seconds" && e.Value == "300" {
			found = true
		}
	}
	if !found {
		t.Fatalf("lifetime not published: %v", kv)
	}
}

func TestLoadRuntime(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("WORLDCLEAR_SERVER_NAME=lobby-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GREPTIMEDB_ENDPOINT", "greptime:4001")
	t.Setenv("WORLDCLEAR_SERVER_NAME", "")
	os.Unsetenv("WORLDCLEAR_SERVER_NAME")

	rt, err := LoadRuntime(dotenv)
	if err != nil {
		t.Fatalf("LoadRuntime: %v", err)
	}
	if rt.ServerName != "lobby-1" || rt.GreptimeEndpoint != "greptime:4001" || rt.SweepTable != "cleanup_sweeps" {
		t.Fatalf("unexpected runtime: %+v", rt)
	}
	if _, err := LoadRuntime(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing dotenv should be ignored: %v", err)
	}
}
