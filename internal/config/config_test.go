package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `server:
  port: "9000"
redis:
  addr: "localhost:6379"
  db: 2
sessions:
  retention: 90m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Redis.DB != 2 || cfg.Log.Level != "debug" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Redis.Addr != "redis:6380" || cfg.Log.Format != "json" {
		t.Fatalf("env overlay not applied: %+v", cfg)
	}
	if got := Duration(cfg.Sessions.Retention, time.Hour); got != 90*time.Minute {
		t.Fatalf("expected 90m retention, got %s", got)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/live")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Postgres.URL != "postgres://localhost/live" {
		t.Fatalf("expected env postgres url, got %q", cfg.Postgres.URL)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationFallback(t *testing.T) {
	cases := map[string]time.Duration{
		"":      time.Minute,
		"bogus": time.Minute,
		"-5s":   time.Minute,
		"45s":   45 * time.Second,
	}
	for raw, want := range cases {
		if got := Duration(raw, time.Minute); got != want {
			t.Fatalf("Duration(%q) = %s, want %s", raw, got, want)
		}
	}
}
