package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Audit.Limit != 200 {
		t.Fatalf("expected audit limit 200, got %d", cfg.Audit.Limit)
	}
}

func TestLoadFromPathFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9090\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SERVER_HOST", "127.0.0.1")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090 from file, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host from env, got %q", cfg.Server.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromPathRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected error for negative port")
	}
}
