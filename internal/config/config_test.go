package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.ExpandCron != "0 * * * *" {
		t.Errorf("expand_cron = %q", cfg.ExpandCron)
	}
	if cfg.MinFragmentMinutes != 10 {
		t.Errorf("min_fragment_minutes = %d, want 10", cfg.MinFragmentMinutes)
	}
	if cfg.HorizonDays != 7 {
		t.Errorf("horizon_days = %d, want 7", cfg.HorizonDays)
	}
	if cfg.Store.Path == "" || cfg.Store.BusyTimeoutMs <= 0 {
		t.Errorf("store defaults missing: %+v", cfg.Store)
	}
	if cfg.ICS == nil {
		t.Error("ics list not initialized")
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := Config{Timezone: "Asia/Seoul", LookupDays: 3, MinFragmentMinutes: 5}
	cfg.Normalize()

	if cfg.Timezone != "Asia/Seoul" || cfg.LookupDays != 3 || cfg.MinFragmentMinutes != 5 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}

func TestMinFragment(t *testing.T) {
	cfg := Config{MinFragmentMinutes: 15}
	if cfg.MinFragment() != 15*time.Minute {
		t.Errorf("MinFragment = %v", cfg.MinFragment())
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Error("invalid timezone did not fall back to UTC")
	}
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	in := DefaultConfig()
	in.Timezone = "Asia/Seoul"
	in.LookupDays = 2
	in.ICS = []ICSConfig{{URL: "https://example.com/cal.ics", ID: "team"}}
	in.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Timezone != "Asia/Seoul" || out.LookupDays != 2 {
		t.Errorf("round trip lost values: %+v", out)
	}
	if len(out.ICS) != 1 || out.ICS[0].ID != "team" {
		t.Errorf("ics sources lost: %+v", out.ICS)
	}
	if out.BasicAuth == nil || out.BasicAuth.Username != "u" {
		t.Errorf("basic auth lost: %+v", out.BasicAuth)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
