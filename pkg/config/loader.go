package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SYMDEX_*)
// 2. Config file (.symdex/config.yaml or .symdex/config.yml)
// 3. Default values
func Load(rootDir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(rootDir, Dir))

	v.SetEnvPrefix("SYMDEX")
	v.AutomaticEnv()
	// SYMDEX_LOG_LEVEL -> log.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key, which also makes AutomaticEnv see it.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.exclude", defaults.Paths.Exclude)

	v.SetDefault("index.database", defaults.Index.Database)
	v.SetDefault("index.workers", defaults.Index.Workers)
	v.SetDefault("index.max_depth", defaults.Index.MaxDepth)
	v.SetDefault("index.max_cached_forests", defaults.Index.MaxCachedForests)

	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}

// Save writes cfg to rootDir/.symdex/config.yaml, creating the directory.
func Save(rootDir string, cfg *Config) (string, error) {
	if err := Validate(cfg); err != nil {
		return "", err
	}

	dir := filepath.Join(rootDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", Dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	return path, nil
}
