// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  http_addr: "127.0.0.1:9000"

origin:
  url: "http://localhost:3000"

database:
  path: "./entries.db"

cache:
  name_prefix: "app-cache"
  version: "2"
  path: "./cache.db"
  api_marker: "/api/"

sync:
  endpoint: "https://sync.example.com/entries"
  interval: "5m"
  timeout: "3s"
  ledger_ttl: "1m"
  rate_per_second: 4

notifications:
  periodic_interval: "10m"
  journal_path: "/journal"

connectivity:
  interval: "15s"

external:
  timeout: "7s"

logging:
  level: "debug"
  format: "json"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9000")
	}
	if cfg.Database.Path != "./entries.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./entries.db")
	}
	if got := cfg.CacheName(); got != "app-cache-v2" {
		t.Errorf("CacheName() = %q, want %q", got, "app-cache-v2")
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Sync.Interval = %v, want 5m", cfg.Sync.Interval)
	}
	if cfg.Sync.Timeout != 3*time.Second {
		t.Errorf("Sync.Timeout = %v, want 3s", cfg.Sync.Timeout)
	}
	if cfg.Sync.LedgerTTL != time.Minute {
		t.Errorf("Sync.LedgerTTL = %v, want 1m", cfg.Sync.LedgerTTL)
	}
	if cfg.Sync.RatePerSecond != 4 {
		t.Errorf("Sync.RatePerSecond = %v, want 4", cfg.Sync.RatePerSecond)
	}
	if cfg.Notifications.PeriodicInterval != 10*time.Minute {
		t.Errorf("Notifications.PeriodicInterval = %v, want 10m", cfg.Notifications.PeriodicInterval)
	}
	if cfg.Connectivity.Interval != 15*time.Second {
		t.Errorf("Connectivity.Interval = %v, want 15s", cfg.Connectivity.Interval)
	}
	if cfg.Connectivity.ProbeURL != "http://localhost:3000" {
		t.Errorf("Connectivity.ProbeURL = %q, want origin url", cfg.Connectivity.ProbeURL)
	}
	if cfg.External.Timeout != 7*time.Second {
		t.Errorf("External.Timeout = %v, want 7s", cfg.External.Timeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Setenv("MINDMATTERS_DATA_DIR", "/tmp/mm-data")

	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.CacheName() != "mindmatters-cache-v1" {
		t.Errorf("CacheName() = %q", cfg.CacheName())
	}
	if cfg.Database.Path != filepath.Join("/tmp/mm-data", "entries.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Sync.Interval != DefaultSyncInterval {
		t.Errorf("Sync.Interval = %v, want %v", cfg.Sync.Interval, DefaultSyncInterval)
	}
	if cfg.External.Timeout != DefaultExternalTimeout {
		t.Errorf("External.Timeout = %v, want %v", cfg.External.Timeout, DefaultExternalTimeout)
	}
	if cfg.Sync.Endpoint != "" {
		t.Errorf("Sync.Endpoint should default to empty, got %q", cfg.Sync.Endpoint)
	}
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("MM_SYNC_ENDPOINT", "https://remote.example.com/sync")

	cfg, err := Parse([]byte(`
sync:
  endpoint: "${MM_SYNC_ENDPOINT}"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Sync.Endpoint != "https://remote.example.com/sync" {
		t.Errorf("Sync.Endpoint = %q", cfg.Sync.Endpoint)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`
sync:
  interval: "not-a-duration"
`))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "sync.interval") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestParse_NegativeDuration(t *testing.T) {
	_, err := Parse([]byte(`
external:
  timeout: "-5s"
`))
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "relative origin",
			mutate:  func(c *Config) { c.Origin.URL = "/just/a/path" },
			wantErr: "origin.url",
		},
		{
			name:    "bad sync endpoint",
			mutate:  func(c *Config) { c.Sync.Endpoint = "remote-host" },
			wantErr: "sync.endpoint",
		},
		{
			name:    "bad cache version",
			mutate:  func(c *Config) { c.Cache.Version = "v 2/../" },
			wantErr: "cache.version",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("expected defaults, got %q", cfg.Server.HTTPAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv("MINDMATTERS_CONFIG", "/etc/mindmatters.yaml")
	if got := DefaultPath(); got != "/etc/mindmatters.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}
}
