package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/parser"
)

// FileWatcher watches a workspace and re-extracts changed files.
//
// **Features:**
//   - Debouncing - Groups rapid writes to one file into one re-extraction
//   - Selective - Only the changed file's symbol set is replaced
//   - New directories are watched and indexed as they appear; removed or
//     renamed directories take their indexed files with them
//
// A re-extraction that fails with a syntax error leaves the previous pass
// in the index; the file stays dirty until it parses again.
//
// **Usage:**
//
//	w, err := NewFileWatcher(idx, ex, DefaultWatchOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx, "/path/to/workspace"); err != nil {
//	    return err
//	}
//	defer w.Stop()
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	indexer   *SymbolIndexer
	extractor *extractor.Extractor
	logger    *slog.Logger
	options   WatchOptions
	root      string
	ctx       context.Context

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopChan chan struct{}
	running  bool
	stopped  bool
	mu       sync.Mutex
}

// NewFileWatcher creates a new file watcher.
func NewFileWatcher(idx *SymbolIndexer, ex *extractor.Extractor, options WatchOptions, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if options.DebounceMs <= 0 {
		options.DebounceMs = 200
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileWatcher{
		watcher:        watcher,
		indexer:        idx,
		extractor:      ex,
		logger:         logger,
		options:        options,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start watches rootPath and every non-ignored directory below it. Events
// are handled on a background goroutine until Stop is called or ctx ends.
func (fw *FileWatcher) Start(ctx context.Context, rootPath string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return fmt.Errorf("watcher already stopped")
	}
	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	root, err := filepath.Abs(rootPath)
	if err != nil {
		return err
	}
	fw.root = root
	fw.ctx = ctx

	if err := fw.addTree(root); err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}
	fw.running = true

	fw.logger.Info("File watcher started", "root", root)
	go fw.eventLoop()
	return nil
}

// addTree adds dir and its subdirectories to the watch list.
func (fw *FileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != fw.root && fw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Stop stops the file watcher.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return nil
	}
	fw.stopped = true
	fw.running = false
	close(fw.stopChan)

	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceTimers = make(map[string]*time.Timer)
	fw.debounceMu.Unlock()

	err := fw.watcher.Close()
	fw.logger.Info("File watcher stopped")
	return err
}

func (fw *FileWatcher) eventLoop() {
	var done <-chan struct{}
	if fw.ctx != nil {
		done = fw.ctx.Done()
	}
	for {
		select {
		case <-fw.stopChan:
			return
		case <-done:
			_ = fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if fw.shouldIgnore(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			fw.addDirectory(path)
			return
		}
	}

	// The path may have been a directory; it can no longer be stat'ed, so
	// drop whatever was indexed beneath it.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		fw.removeTree(path)
	}

	if parser.DetectLanguage(path) == parser.LanguageUnknown {
		return
	}

	fw.logger.Debug("File event", "op", event.Op.String(), "file", path)

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		fw.debounceReindex(path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		fw.removeFile(path)
	}
}

// addDirectory watches a directory that appeared after Start (created, or
// moved in) and schedules every supported file already inside it.
func (fw *FileWatcher) addDirectory(dir string) {
	if err := fw.addTree(dir); err != nil {
		fw.logger.Warn("Failed to watch new directory", "path", dir, "error", err)
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && fw.shouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !fw.shouldIgnore(path) && parser.DetectLanguage(path) != parser.LanguageUnknown {
			fw.debounceReindex(path)
		}
		return nil
	})
}

// removeTree removes every indexed file below the directory path.
func (fw *FileWatcher) removeTree(path string) {
	for _, key := range fw.indexer.FilesUnder(fw.key(path)) {
		fw.removeKey(key)
	}
}

// debounceReindex schedules a re-extraction after the debounce delay.
// A later event for the same file restarts the delay.
func (fw *FileWatcher) debounceReindex(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[path]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(
		time.Duration(fw.options.DebounceMs)*time.Millisecond,
		func() {
			fw.reindexFile(path)

			// the entry may already belong to a newer event
			fw.debounceMu.Lock()
			if fw.debounceTimers[path] == timer {
				delete(fw.debounceTimers, path)
			}
			fw.debounceMu.Unlock()
		},
	)
	fw.debounceTimers[path] = timer
}

// key maps an absolute path to its file key, the slash path under root.
func (fw *FileWatcher) key(path string) string {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// reindexFile re-extracts one file and swaps the new pass into the index.
func (fw *FileWatcher) reindexFile(path string) {
	key := fw.key(path)
	fw.indexer.InvalidateFile(key)

	content, err := os.ReadFile(path)
	if err != nil {
		fw.logger.Warn("Failed to read file for re-extraction", "file", key, "error", err)
		return
	}
	if fw.indexer.ContentHash(key) == extractor.ContentHash(content) {
		fw.indexer.ClearDirty(key)
		return
	}

	ctx := fw.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := fw.extractor.ExtractFile(ctx, key, content)
	if err != nil {
		fw.logger.Warn("Failed to extract file", "file", key, "error", err)
		return
	}

	entry := fw.indexer.ReplaceFile(result)
	if fw.options.OnReplace != nil {
		fw.options.OnReplace(entry)
	}
	fw.logger.Debug("File re-extracted", "file", key, "symbols", len(result.Symbols))
}

func (fw *FileWatcher) removeFile(path string) {
	fw.removeKey(fw.key(path))
}

func (fw *FileWatcher) removeKey(key string) {
	if fw.indexer.RemoveFile(key) {
		fw.logger.Debug("Removed file from index", "file", key)
		if fw.options.OnRemove != nil {
			fw.options.OnRemove(key)
		}
	}
}

// shouldIgnore checks an absolute path against the ignore patterns.
func (fw *FileWatcher) shouldIgnore(path string) bool {
	rel := fw.key(path)
	if matchesAny(fw.options.IgnorePatterns, rel) {
		return true
	}
	return matchesAny(fw.options.IgnorePatterns, rel+"/")
}

// GetStats returns file watcher statistics.
func (fw *FileWatcher) GetStats() FileWatcherStats {
	fw.debounceMu.Lock()
	pending := len(fw.debounceTimers)
	fw.debounceMu.Unlock()

	fw.mu.Lock()
	running := fw.running
	fw.mu.Unlock()

	return FileWatcherStats{
		PendingReindexes: pending,
		IsRunning:        running,
	}
}

// FileWatcherStats contains file watcher statistics.
type FileWatcherStats struct {
	PendingReindexes int
	IsRunning        bool
}
