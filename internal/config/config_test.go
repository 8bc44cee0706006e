package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: test\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Alerting.SurveillancePct != 15 || cfg.Alerting.AlertPct != 30 || cfg.Alerting.UrgentPct != 50 {
		t.Fatalf("default thresholds wrong: %+v", cfg.Alerting)
	}
	if cfg.Alerting.MinSamples != 3 {
		t.Fatalf("default min samples should be 3, got %d", cfg.Alerting.MinSamples)
	}
	if cfg.Alerting.Window != 30*24*time.Hour {
		t.Fatalf("default window should be 30 days, got %s", cfg.Alerting.Window)
	}
	if cfg.Alerting.RecomputeLookback != 7*24*time.Hour {
		t.Fatalf("default lookback should be 7 days, got %s", cfg.Alerting.RecomputeLookback)
	}
	if cfg.App.Name != "test" {
		t.Fatalf("file value not applied: %q", cfg.App.Name)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "alerting:\n  surveillance_pct: 10\n  alert_pct: 20\n  urgent_pct: 40\n  window: 336h\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PRICEWATCH_ALERTING_MIN_SAMPLES", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Alerting.SurveillancePct != 10 || cfg.Alerting.UrgentPct != 40 {
		t.Fatalf("file thresholds not applied: %+v", cfg.Alerting)
	}
	if cfg.Alerting.Window != 14*24*time.Hour {
		t.Fatalf("window not applied: %s", cfg.Alerting.Window)
	}
	if cfg.Alerting.MinSamples != 5 {
		t.Fatalf("env override not applied: %d", cfg.Alerting.MinSamples)
	}
}

func TestValidateThresholdOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "alerting:\n  surveillance_pct: 30\n  alert_pct: 20\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("descending thresholds should be rejected")
	}
}

func TestResolveOverrides(t *testing.T) {
	cfg := &Config{
		Alerting: AlertingConfig{RecomputeLookback: time.Hour},
		Export:   ExportConfig{MaxDataPoints: 10},
	}
	if cfg.ResolveLookback(0) != time.Hour || cfg.ResolveLookback(time.Minute) != time.Minute {
		t.Fatal("lookback override not honoured")
	}
	if cfg.ResolveMaxPoints(0) != 10 || cfg.ResolveMaxPoints(3) != 3 {
		t.Fatal("max points override not honoured")
	}
}

func TestLoadSecretsFromEnvOnly(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PRICEWATCH_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("PRICEWATCH_DATABASE_DSN", "postgres://pricewatch@localhost/pricewatch")
	t.Setenv("PRICEWATCH_CACHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("PRICEWATCH_CACHE_REDIS_PASSWORD", "hunter2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("jwt secret not read from env: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.DSN != "postgres://pricewatch@localhost/pricewatch" {
		t.Fatalf("dsn not read from env: %q", cfg.Database.DSN)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.RedisPassword != "hunter2" {
		t.Fatalf("redis settings not read from env: %+v", cfg.Cache)
	}
}
