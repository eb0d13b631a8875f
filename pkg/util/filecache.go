package util

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// ErrStaleSource is returned when a file changed size or modification time
// since it was mapped and the requested range no longer fits.
var ErrStaleSource = errors.New("source changed since it was indexed")

// SourceCache serves symbol source text by byte range from memory-mapped
// files.
//
// **Lifecycle:**
//   - Lazy loading: files are mapped on first access
//   - A file whose size or mtime changed is remapped on next access
//   - Invalidate drops one file (used by the watcher); Close drops all
//
// **Thread Safety:** Safe for concurrent calls. Reads copy out of a mapping
// under the read lock; loads, invalidation and unmapping take the write
// lock, so a mapping is never released while a reader is copying from it.
type SourceCache struct {
	maxFiles int
	logger   *slog.Logger

	mu    sync.RWMutex
	files map[string]*mappedFile

	statsMu sync.Mutex
	stats   SourceCacheStats
}

type mappedFile struct {
	data    mmap.MMap
	file    *os.File // nil for read fallback and empty files
	size    int64
	modTime time.Time
	mapped  bool
}

// SourceCacheStats tracks cache performance metrics.
type SourceCacheStats struct {
	FilesCached  int   `json:"files_cached"`
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Remaps       int64 `json:"remaps"`
	MmapFailures int64 `json:"mmap_failures"`
}

// NewSourceCache creates a cache holding at most maxFiles mappings
// (0 = unlimited). When full, the cache is cleared before loading.
func NewSourceCache(maxFiles int, logger *slog.Logger) *SourceCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceCache{
		maxFiles: maxFiles,
		logger:   logger,
		files:    make(map[string]*mappedFile),
	}
}

// Bytes returns a copy of the whole content of path.
func (c *SourceCache) Bytes(path string) ([]byte, error) {
	var out []byte
	err := c.withData(path, func(data []byte) error {
		out = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Slice returns the text in [startByte, endByte) of path.
func (c *SourceCache) Slice(path string, startByte, endByte int) (string, error) {
	if startByte < 0 || endByte < startByte {
		return "", fmt.Errorf("invalid byte range %d-%d", startByte, endByte)
	}
	var text string
	err := c.withData(path, func(data []byte) error {
		if endByte > len(data) {
			return fmt.Errorf("%s: range %d-%d exceeds %d bytes: %w",
				path, startByte, endByte, len(data), ErrStaleSource)
		}
		text = string(data[startByte:endByte])
		return nil
	})
	return text, err
}

// withData calls fn with the mapped content of path, loading or remapping
// it first when needed. fn runs while the cache lock is held, so the
// mapping cannot be unmapped underneath it; fn must copy what it keeps.
func (c *SourceCache) withData(path string, fn func(data []byte) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}

	c.mu.RLock()
	if mf, ok := c.files[path]; ok && mf.matches(info) {
		defer c.mu.RUnlock()
		c.record(func(s *SourceCacheStats) { s.Hits++ })
		return fn(mf.data)
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.files[path]; ok {
		if cur.matches(info) {
			c.record(func(s *SourceCacheStats) { s.Hits++ })
			return fn(cur.data)
		}
		c.unmapLocked(path, cur)
		c.record(func(s *SourceCacheStats) { s.Remaps++ })
	} else {
		c.record(func(s *SourceCacheStats) { s.Misses++ })
	}

	if c.maxFiles > 0 && len(c.files) >= c.maxFiles {
		for p, old := range c.files {
			c.unmapLocked(p, old)
		}
	}

	loaded, err := c.load(path)
	if err != nil {
		return err
	}
	c.files[path] = loaded
	return fn(loaded.data)
}

func (mf *mappedFile) matches(info os.FileInfo) bool {
	return mf.size == info.Size() && mf.modTime.Equal(info.ModTime())
}

// load maps path read-only, falling back to os.ReadFile when mmap fails.
// Must be called with the write lock held.
func (c *SourceCache) load(path string) (*mappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	mf := &mappedFile{size: info.Size(), modTime: info.ModTime()}

	// zero-length files cannot be mapped
	if info.Size() == 0 {
		file.Close()
		return mf, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		c.logger.Warn("mmap failed, using fallback", "file", path, "error", err)
		c.record(func(s *SourceCacheStats) { s.MmapFailures++ })
		file.Close()

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("reading %q after mmap failure (%v): %w", path, err, readErr)
		}
		mf.data = mmap.MMap(content)
		return mf, nil
	}

	mf.data = data
	mf.file = file
	mf.mapped = true
	return mf, nil
}

// Invalidate drops the mapping for path, if any.
func (c *SourceCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mf, ok := c.files[path]; ok {
		c.unmapLocked(path, mf)
	}
}

func (c *SourceCache) unmapLocked(path string, mf *mappedFile) {
	delete(c.files, path)
	if mf.mapped {
		if err := mf.data.Unmap(); err != nil {
			c.logger.Warn("failed to unmap file", "file", path, "error", err)
		}
	}
	if mf.file != nil {
		mf.file.Close()
	}
}

// Stats returns current cache metrics.
func (c *SourceCache) Stats() SourceCacheStats {
	c.mu.RLock()
	n := len(c.files)
	c.mu.RUnlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	stats := c.stats
	stats.FilesCached = n
	return stats
}

func (c *SourceCache) record(fn func(*SourceCacheStats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}

// Close unmaps all files.
func (c *SourceCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for path, mf := range c.files {
		if mf.mapped {
			if err := mf.data.Unmap(); err != nil {
				errs = append(errs, fmt.Errorf("unmap %q: %w", path, err))
			}
		}
		if mf.file != nil {
			if err := mf.file.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", path, err))
			}
		}
	}
	c.files = make(map[string]*mappedFile)
	return errors.Join(errs...)
}
