package config

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/symdex/pkg/util"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks that the configuration is usable. All problems are
// reported together.
func Validate(cfg *Config) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	for _, p := range cfg.Paths.Include {
		if !doublestar.ValidatePattern(p) {
			invalid("paths.include: bad pattern %q", p)
		}
	}
	for _, p := range cfg.Paths.Exclude {
		if !doublestar.ValidatePattern(p) {
			invalid("paths.exclude: bad pattern %q", p)
		}
	}

	if cfg.Index.Workers < 0 {
		invalid("index.workers must be >= 0, got %d", cfg.Index.Workers)
	}
	if cfg.Index.MaxDepth < 0 {
		invalid("index.max_depth must be >= 0, got %d", cfg.Index.MaxDepth)
	}
	if cfg.Index.MaxCachedForests < 0 {
		invalid("index.max_cached_forests must be >= 0, got %d", cfg.Index.MaxCachedForests)
	}
	if cfg.Watch.DebounceMs < 0 {
		invalid("watch.debounce_ms must be >= 0, got %d", cfg.Watch.DebounceMs)
	}

	if _, err := util.ParseLogLevel(cfg.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if _, err := util.ParseLogFormat(cfg.Log.Format); err != nil {
		invalid("log.format: %v", err)
	}

	return errors.Join(errs...)
}
