package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Liveness.ProbeIntervalMs != 30_000 {
		t.Fatalf("probe interval default")
	}
	if cfg.Liveness.DeadlineMs != 60_000 {
		t.Fatalf("deadline default")
	}
	if cfg.Client.MaxRetries != 3 {
		t.Fatalf("max retries default")
	}
	if cfg.Limits.SendQueueSize != 256 {
		t.Fatalf("send queue default")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.json")
	data := []byte(`{"server":{"httpAddr":":9090"},"liveness":{"probeIntervalMs":5000,"deadlineMs":10000},"client":{"maxRetries":5}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Server.HTTPAddr)
	}
	if cfg.Liveness.ProbeIntervalMs != 5000 {
		t.Fatalf("expected 5000")
	}
	if cfg.Client.MaxRetries != 5 {
		t.Fatalf("expected 5")
	}
	// untouched sections keep defaults
	if cfg.Limits.SendQueueSize != 256 {
		t.Fatalf("limits should keep defaults")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.yaml")
	data := []byte("server:\n  httpAddr: \":7070\"\nliveness:\n  deadlineMs: 45000\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":7070" {
		t.Fatalf("expected :7070, got %s", cfg.Server.HTTPAddr)
	}
	if cfg.Liveness.DeadlineMs != 45000 {
		t.Fatalf("expected 45000")
	}
	if cfg.Liveness.ProbeIntervalMs != 30_000 {
		t.Fatalf("probe interval should keep default")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("RELAY_HTTP_ADDR", ":6060")
	os.Setenv("RELAY_LIVENESS_DEADLINE_MS", "90000")
	os.Setenv("RELAY_CLIENT_MAX_RETRIES", "4")
	t.Cleanup(func() {
		os.Unsetenv("RELAY_HTTP_ADDR")
		os.Unsetenv("RELAY_LIVENESS_DEADLINE_MS")
		os.Unsetenv("RELAY_CLIENT_MAX_RETRIES")
	})
	FromEnv(&cfg)
	if cfg.Server.HTTPAddr != ":6060" {
		t.Fatalf("env override addr")
	}
	if cfg.Liveness.DeadlineMs != 90000 {
		t.Fatalf("env override deadline")
	}
	if cfg.Client.MaxRetries != 4 {
		t.Fatalf("env override retries")
	}
}
