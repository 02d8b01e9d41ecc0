// Package config handles VanirDB configuration.
//
// Configuration comes from three layers, each overriding the last:
// defaults, an optional YAML file, and VANIRDB_-prefixed environment
// variables. The core deliberately takes only a handful of knobs: where the
// data lives, which graph namespace to open, and how the process behaves
// around it.
//
// Environment variables:
//   - VANIRDB_DATA_DIR    data directory (default ./data)
//   - VANIRDB_GRAPH       graph namespace (default "default")
//   - VANIRDB_IN_MEMORY   "true" to skip disk entirely
//   - VANIRDB_SYNC_WRITES "true" to fsync every commit
//   - VANIRDB_LOG_LEVEL   zerolog level name (default "info")
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to open a database.
type Config struct {
	// DataDir is the directory for the persistent store.
	DataDir string `yaml:"data_dir"`

	// Graph is the key namespace; several graphs can share one store.
	Graph string `yaml:"graph"`

	// InMemory runs the store without touching disk.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites forces fsync after each commit.
	SyncWrites bool `yaml:"sync_writes"`

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		Graph:    "default",
		LogLevel: "info",
	}
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFromEnv returns the defaults with environment overrides applied.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields from VANIRDB_ environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("VANIRDB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("VANIRDB_GRAPH"); v != "" {
		c.Graph = v
	}
	if v := os.Getenv("VANIRDB_IN_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.InMemory = b
		}
	}
	if v := os.Getenv("VANIRDB_SYNC_WRITES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SyncWrites = b
		}
	}
	if v := os.Getenv("VANIRDB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("data_dir is required unless in_memory is set")
	}
	if c.Graph == "" {
		return fmt.Errorf("graph namespace must not be empty")
	}
	return nil
}
