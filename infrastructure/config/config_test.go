package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cuttracker.yaml")
	yamlText := `
addr: ":9090"
sqlite_path: "/tmp/shop.db"
session_ttl: 2h
hub:
  buffer_size: 16
  write_timeout: 3s
`
	if err := os.WriteFile(path, []byte(yamlText), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SQLITE_PATH", "/data/override.db")
	t.Setenv("HUB_PING_INTERVAL", "5s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr from yaml, got %q", cfg.Addr)
	}
	if cfg.SQLitePath != "/data/override.db" {
		t.Fatalf("expected env override for sqlite path, got %q", cfg.SQLitePath)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected session ttl 2h, got %s", cfg.SessionTTL)
	}
	if cfg.Hub.BufferSize != 16 || cfg.Hub.WriteTimeout != 3*time.Second {
		t.Fatalf("unexpected hub config: %+v", cfg.Hub)
	}
	if cfg.Hub.PingInterval != 5*time.Second {
		t.Fatalf("expected ping interval from env, got %s", cfg.Hub.PingInterval)
	}
	if cfg.ReadPoolSize != Default().ReadPoolSize {
		t.Fatalf("expected default read pool size, got %d", cfg.ReadPoolSize)
	}
}

func TestApplyEnv_RejectsBadDuration(t *testing.T) {
	cfg := Default()
	lookup := func(key string) (string, bool) {
		if key == "SESSION_TTL" {
			return "forever", true
		}
		return "", false
	}
	if err := applyEnv(&cfg, lookup); err == nil {
		t.Fatalf("expected parse error for SESSION_TTL")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Hub.BufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected buffer size validation error")
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}
