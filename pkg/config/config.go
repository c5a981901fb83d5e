// Package config loads MoonSQL's YAML configuration (SPEC_FULL.md §10.1).
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// StorageConfig controls the data directory and buffer pool (spec §4.8).
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	BufferPoolSize    int    `yaml:"buffer_pool_size"`
	ReplacementPolicy string `yaml:"replacement_policy"`
}

// OutputConfig controls how the CLI renders results.
type OutputConfig struct {
	Format string `yaml:"format"` // table | json
}

// LoggingConfig controls pkg/logger's verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is MoonSQL's full runtime configuration, loaded from an optional
// YAML file and overridable by CLI flags.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns MoonSQL's configuration when no file is supplied,
// or when one cannot be read (a missing/unreadable config file is a
// warning, not a fatal error).
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:           "./data",
			BufferPoolSize:    64,
			ReplacementPolicy: "lru",
		},
		Output: OutputConfig{Format: "table"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and parses a YAML config file at path, filling in defaults
// for any field left unset.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.BufferPoolSize <= 0 {
		cfg.Storage.BufferPoolSize = 64
	}
	if cfg.Storage.ReplacementPolicy == "" {
		cfg.Storage.ReplacementPolicy = "lru"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg, nil
}
