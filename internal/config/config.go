// Package config provides unified configuration loading for lorekeep.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all lorekeep configuration settings.
type Config struct {
	// Store contains settings for the embedded knowledge database.
	Store StoreConfig `json:"store" yaml:"store"`

	// Graph contains settings for the external knowledge-graph file.
	Graph GraphConfig `json:"graph" yaml:"graph"`

	// Sync contains settings for the background sync scheduler.
	Sync SyncConfig `json:"sync" yaml:"sync"`

	// Patterns contains settings for the pattern-freshness checker.
	Patterns PatternsConfig `json:"patterns" yaml:"patterns"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// StoreConfig configures the embedded SQLite knowledge store.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to .lorekeep/knowledge.db
	// under the project root.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// GraphConfig configures the external knowledge-graph file.
type GraphConfig struct {
	// Path is the newline-delimited JSON graph file shared with other tools.
	// Defaults to .lorekeep/graph.jsonl under the project root.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// BackupDir is where timestamped copies are written before full exports.
	// Defaults to .lorekeep/backups under the project root.
	BackupDir string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`

	// KeepBackups is how many backup files to retain. Older ones are removed.
	KeepBackups int `json:"keep_backups" yaml:"keep_backups"`
}

// SyncConfig configures the background sync scheduler.
type SyncConfig struct {
	// IncrementalInterval is how often incremental sync passes run.
	IncrementalInterval time.Duration `json:"incremental_interval" yaml:"incremental_interval"`

	// FullInterval is how often full sync passes run.
	FullInterval time.Duration `json:"full_interval" yaml:"full_interval"`

	// FailureThreshold is the number of consecutive sync failures before
	// the scheduler escalates to a delayed full-sync recovery attempt.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryDelay is how long to wait before the escalated full sync.
	RecoveryDelay time.Duration `json:"recovery_delay" yaml:"recovery_delay"`

	// ShutdownTimeout bounds the final best-effort full sync at shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// PatternsConfig configures the pattern-freshness checker.
type PatternsConfig struct {
	// ReferencePath is the YAML file declaring the canonical pattern set.
	// Defaults to .lorekeep/patterns.yaml under the project root.
	ReferencePath string `json:"reference_path,omitempty" yaml:"reference_path,omitempty"`
}

// LoggingConfig configures lorekeep's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults, with paths resolved
// relative to the given project root.
func Default(root string) *Config {
	dir := filepath.Join(root, ".lorekeep")
	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(dir, "knowledge.db"),
		},
		Graph: GraphConfig{
			Path:        filepath.Join(dir, "graph.jsonl"),
			BackupDir:   filepath.Join(dir, "backups"),
			KeepBackups: 10,
		},
		Sync: SyncConfig{
			IncrementalInterval: 5 * time.Minute,
			FullInterval:        time.Hour,
			FailureThreshold:    3,
			RecoveryDelay:       30 * time.Second,
			ShutdownTimeout:     10 * time.Second,
		},
		Patterns: PatternsConfig{
			ReferencePath: filepath.Join(dir, "patterns.yaml"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the given project root.
// Order: defaults -> <root>/.lorekeep/config.yaml -> environment variables.
func Load(root string) (*Config, error) {
	config := Default(root)

	configPath := filepath.Join(root, ".lorekeep", "config.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil {
		fileConfig, loadErr := LoadFromFile(root, configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Fields absent from the file keep their defaults for the given root.
func LoadFromFile(root, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default(root)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.Graph.Path == "" {
		return fmt.Errorf("graph path must not be empty")
	}
	if c.Graph.KeepBackups < 1 {
		return fmt.Errorf("keep_backups must be at least 1, got %d", c.Graph.KeepBackups)
	}
	if c.Sync.IncrementalInterval <= 0 {
		return fmt.Errorf("incremental_interval must be positive, got %v", c.Sync.IncrementalInterval)
	}
	if c.Sync.FullInterval <= 0 {
		return fmt.Errorf("full_interval must be positive, got %v", c.Sync.FullInterval)
	}
	if c.Sync.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", c.Sync.FailureThreshold)
	}
	if c.Sync.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", c.Sync.ShutdownTimeout)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("LOREKEEP_DB_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("LOREKEEP_GRAPH_PATH"); v != "" {
		config.Graph.Path = v
	}

	if v := os.Getenv("LOREKEEP_BACKUP_DIR"); v != "" {
		config.Graph.BackupDir = v
	}

	if v := os.Getenv("LOREKEEP_REFERENCE_PATH"); v != "" {
		config.Patterns.ReferencePath = v
	}

	if v := os.Getenv("LOREKEEP_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Sync.IncrementalInterval = d
		}
	}

	if v := os.Getenv("LOREKEEP_FULL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Sync.FullInterval = d
		}
	}

	if v := os.Getenv("LOREKEEP_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sync.FailureThreshold = n
		}
	}

	if v := os.Getenv("LOREKEEP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
