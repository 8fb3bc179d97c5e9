// Package config loads disktree's configuration schema (spec.md §6)
// from a YAML file laid over built-in defaults. Command-line flags are
// not merged in by this package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration schema enumerated in spec.md §6.
type Config struct {
	RootDir            string        `yaml:"root_dir"`
	BlobDir            string        `yaml:"blob_dir"`
	DBPath             string        `yaml:"db_path"`
	MaxConcurrentScans int           `yaml:"max_concurrent_scans"`
	SampleErrorPaths   int           `yaml:"sample_error_paths"`
	ProbeExcludeGlobs  []string      `yaml:"probe_exclude_globs"`
	SudoLocalProbe     bool          `yaml:"sudo_local_probe"`
	ProgressTick       time.Duration `yaml:"progress_tick"`
	FollowSymlinks     bool          `yaml:"follow_symlinks"`
	DedupeByInode      bool          `yaml:"dedupe_by_inode"`
	GCRetention        time.Duration `yaml:"gc_retention"`
}

// Default returns the configuration used when no file or flags are
// supplied.
func Default() *Config {
	return &Config{
		RootDir:            "/var/lib/disktree",
		BlobDir:            "blobs",
		DBPath:             "catalog.db",
		MaxConcurrentScans: 0, // 0 means "CPU count", resolved by the scheduler
		SampleErrorPaths:   100,
		ProgressTick:       2 * time.Second,
		FollowSymlinks:     false,
		DedupeByInode:      true,
		GCRetention:        30 * 24 * time.Hour,
	}
}

// Load reads a YAML file at path and overlays it onto Default(). A
// missing file is not an error — the defaults are returned as-is,
// matching the teacher's tolerant startup behavior (cmd/warren never
// requires a config file either).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BlobPath returns the absolute directory blobs are written under.
func (c *Config) BlobPath() string {
	if filepath.IsAbs(c.BlobDir) {
		return c.BlobDir
	}
	return filepath.Join(c.RootDir, c.BlobDir)
}

// CatalogPath returns the absolute path to the catalog database file.
func (c *Config) CatalogPath() string {
	if filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(c.RootDir, c.DBPath)
}
