package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, Dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Contains(t, cfg.Paths.Include, "**/*.py")
	assert.Contains(t, cfg.Paths.Exclude, "**/__pycache__/**")
	assert.Equal(t, 200, cfg.Watch.DebounceMs)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileMergesWithDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
index:
  workers: 3
log:
  level: debug
`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, Default().Paths.Include, cfg.Paths.Include)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "log:\n  level: info\n")
	t.Setenv("SYMDEX_LOG_LEVEL", "error")
	t.Setenv("SYMDEX_WATCH_DEBOUNCE_MS", "50")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Watch.DebounceMs)
}

func TestLoad_MalformedYAML(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "log: [unterminated\n")

	_, err := Load(root)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "index:\n  workers: -1\nlog:\n  level: loud\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "index.workers")
	assert.Contains(t, err.Error(), "log.level")
}

func TestValidate_BadPattern(t *testing.T) {
	cfg := Default()
	cfg.Paths.Exclude = append(cfg.Paths.Exclude, "[oops")

	err := Validate(cfg)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Index.Workers = 2
	cfg.Index.Database = "data/symbols.db"

	path, err := Save(root, cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, Dir, FileName), path)

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, filepath.Join(root, "data", "symbols.db"), loaded.DatabasePath(root))
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/ws", Dir, "index.db"), cfg.DatabasePath("/ws"))

	cfg.Index.Database = "/abs/index.db"
	assert.Equal(t, "/abs/index.db", cfg.DatabasePath("/ws"))
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Index.Workers = 5
	cfg.Watch.DebounceMs = 10

	scan := cfg.ScanOptions()
	assert.Equal(t, 5, scan.Workers)
	assert.Equal(t, cfg.Paths.Include, scan.Include)

	watch := cfg.WatchOptions()
	assert.Equal(t, 10, watch.DebounceMs)
	assert.Subset(t, watch.IgnorePatterns, cfg.Paths.Exclude)

	assert.Equal(t, cfg.Index.MaxCachedForests, cfg.IndexerConfig().MaxCachedForests)
}
