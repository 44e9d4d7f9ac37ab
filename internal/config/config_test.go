package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default("/tmp/project")

	if cfg.Store.Path != filepath.Join("/tmp/project", ".lorekeep", "knowledge.db") {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Graph.KeepBackups != 10 {
		t.Errorf("KeepBackups = %d, want 10", cfg.Graph.KeepBackups)
	}
	if cfg.Sync.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.Sync.FailureThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
graph:
  path: /shared/memory.jsonl
  keep_backups: 3
sync:
  incremental_interval: 30s
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(tmpDir, configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Graph.Path != "/shared/memory.jsonl" {
		t.Errorf("Graph.Path = %q", cfg.Graph.Path)
	}
	if cfg.Graph.KeepBackups != 3 {
		t.Errorf("KeepBackups = %d, want 3", cfg.Graph.KeepBackups)
	}
	if cfg.Sync.IncrementalInterval != 30*time.Second {
		t.Errorf("IncrementalInterval = %v, want 30s", cfg.Sync.IncrementalInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Fields absent from the file keep defaults
	if cfg.Store.Path != filepath.Join(tmpDir, ".lorekeep", "knowledge.db") {
		t.Errorf("Store.Path = %q, want default", cfg.Store.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("LOREKEEP_GRAPH_PATH", "/elsewhere/graph.jsonl")
	t.Setenv("LOREKEEP_SYNC_INTERVAL", "45s")
	t.Setenv("LOREKEEP_LOG_LEVEL", "trace")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Graph.Path != "/elsewhere/graph.jsonl" {
		t.Errorf("Graph.Path = %q", cfg.Graph.Path)
	}
	if cfg.Sync.IncrementalInterval != 45*time.Second {
		t.Errorf("IncrementalInterval = %v", cfg.Sync.IncrementalInterval)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, true},
		{"empty graph path", func(c *Config) { c.Graph.Path = "" }, true},
		{"zero keep_backups", func(c *Config) { c.Graph.KeepBackups = 0 }, true},
		{"negative incremental interval", func(c *Config) { c.Sync.IncrementalInterval = -time.Second }, true},
		{"zero failure threshold", func(c *Config) { c.Sync.FailureThreshold = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
