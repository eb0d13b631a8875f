// Package config loads symdex settings from .symdex/config.yaml with
// SYMDEX_* environment overrides.
package config

import (
	"path/filepath"

	"github.com/gnana997/symdex/pkg/indexer"
)

// Dir is the per-workspace directory holding config and the index database.
const Dir = ".symdex"

// FileName is the config file name inside Dir.
const FileName = "config.yaml"

// Config represents the complete symdex configuration.
type Config struct {
	Paths PathsConfig `yaml:"paths" mapstructure:"paths"`
	Index IndexConfig `yaml:"index" mapstructure:"index"`
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// PathsConfig defines which files to index.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // doublestar patterns, relative to the root
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

// IndexConfig controls extraction and storage.
type IndexConfig struct {
	Database         string `yaml:"database" mapstructure:"database"` // empty means .symdex/index.db
	Workers          int    `yaml:"workers" mapstructure:"workers"`   // 0 = auto
	MaxDepth         int    `yaml:"max_depth" mapstructure:"max_depth"`
	MaxCachedForests int    `yaml:"max_cached_forests" mapstructure:"max_cached_forests"`
}

// WatchConfig controls the file watcher used by serve --watch.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	scan := indexer.DefaultScanOptions()
	return &Config{
		Paths: PathsConfig{
			Include: scan.Include,
			Exclude: scan.Exclude,
		},
		Index: IndexConfig{
			MaxCachedForests: indexer.DefaultSymbolIndexerConfig().MaxCachedForests,
		},
		Watch: WatchConfig{
			DebounceMs: indexer.DefaultWatchOptions().DebounceMs,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DatabasePath resolves the index database location for a workspace root.
func (c *Config) DatabasePath(rootDir string) string {
	if c.Index.Database == "" {
		return filepath.Join(rootDir, Dir, "index.db")
	}
	if filepath.IsAbs(c.Index.Database) {
		return c.Index.Database
	}
	return filepath.Join(rootDir, c.Index.Database)
}

// ScanOptions converts the paths section into scanner options.
func (c *Config) ScanOptions() indexer.ScanOptions {
	return indexer.ScanOptions{
		Include:  c.Paths.Include,
		Exclude:  c.Paths.Exclude,
		MaxDepth: c.Index.MaxDepth,
		Workers:  c.Index.Workers,
	}
}

// WatchOptions converts the watch section into watcher options.
func (c *Config) WatchOptions() indexer.WatchOptions {
	opts := indexer.DefaultWatchOptions()
	opts.DebounceMs = c.Watch.DebounceMs
	opts.IgnorePatterns = append(opts.IgnorePatterns, c.Paths.Exclude...)
	return opts
}

// IndexerConfig converts the index section into symbol index settings.
func (c *Config) IndexerConfig() indexer.SymbolIndexerConfig {
	cfg := indexer.DefaultSymbolIndexerConfig()
	if c.Index.MaxCachedForests > 0 {
		cfg.MaxCachedForests = c.Index.MaxCachedForests
	}
	return cfg
}
