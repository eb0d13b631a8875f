package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/util"
)

// WorkspaceScanner discovers source files under a root and indexes them in
// parallel.
//
// **Three-Phase Pipeline:**
//  1. File Discovery - Walk directory tree and find matching files
//  2. Parallel Extraction - Extract symbols on a worker pool
//  3. Indexing - Swap each file's pass into the SymbolIndexer
//
// Files are keyed by their slash-separated path relative to the root, so
// module names do not depend on where the workspace is checked out.
//
// **Usage:**
//
//	scanner := NewWorkspaceScanner(ex, idx, logger)
//	stats, err := scanner.ScanWorkspace(ctx, "/path/to/workspace", DefaultScanOptions(),
//	    func(done, total int, file string) {
//	        fmt.Printf("Progress: %d/%d - %s\n", done, total, file)
//	    },
//	)
type WorkspaceScanner struct {
	extractor *extractor.Extractor
	indexer   *SymbolIndexer
	logger    *slog.Logger
}

// NewWorkspaceScanner creates a new workspace scanner.
func NewWorkspaceScanner(ex *extractor.Extractor, idx *SymbolIndexer, logger *slog.Logger) *WorkspaceScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceScanner{extractor: ex, indexer: idx, logger: logger}
}

// DiscoveredFile is a source file found by a scan.
type DiscoveredFile struct {
	// AbsPath is the file's location on disk.
	AbsPath string
	// Key is the slash-separated path relative to the scan root.
	Key string
}

// ScanWorkspace scans a workspace and indexes every matching file. Files
// whose content hash equals the indexed pass are skipped. Per-file failures
// are collected in ScanStats.Errors; only discovery failures abort the scan.
func (ws *WorkspaceScanner) ScanWorkspace(
	ctx context.Context,
	rootPath string,
	options ScanOptions,
	progressCallback ProgressCallback,
) (*ScanStats, error) {
	startTime := time.Now()
	stats := &ScanStats{StartTime: startTime}

	ws.logger.Info("Starting workspace scan", "root", rootPath)

	discoveryStart := time.Now()
	files, err := DiscoverFiles(rootPath, options, ws.logger)
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTimeMs = time.Since(discoveryStart).Milliseconds()

	ws.logger.Debug("File discovery complete",
		"files_found", len(files),
		"duration_ms", stats.DiscoveryTimeMs)

	stats.FilesRemoved = ws.pruneMissing(files)

	if len(files) == 0 {
		ws.logger.Warn("No files found matching criteria", "root", rootPath)
		stats.EndTime = time.Now()
		stats.TotalTimeMs = time.Since(startTime).Milliseconds()
		return stats, nil
	}

	indexingStart := time.Now()
	ws.processFilesParallel(ctx, files, options.Workers, stats, progressCallback)
	stats.IndexingTimeMs = time.Since(indexingStart).Milliseconds()
	stats.Cancelled = ctx.Err() != nil

	stats.EndTime = time.Now()
	stats.TotalTimeMs = time.Since(startTime).Milliseconds()
	if stats.IndexingTimeMs > 0 {
		stats.FilesPerSecond = float64(stats.FilesIndexed) / (float64(stats.IndexingTimeMs) / 1000.0)
	}

	ws.logger.Info("Workspace scan complete",
		"files_indexed", stats.FilesIndexed,
		"files_unchanged", stats.FilesUnchanged,
		"files_removed", stats.FilesRemoved,
		"files_failed", stats.FilesFailed,
		"symbols_extracted", stats.SymbolsExtracted,
		"duration_ms", stats.TotalTimeMs)

	if stats.Cancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// pruneMissing drops indexed files that discovery no longer finds.
func (ws *WorkspaceScanner) pruneMissing(files []DiscoveredFile) int {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Key] = struct{}{}
	}
	removed := 0
	for _, entry := range ws.indexer.GetAllFileSymbols() {
		if _, ok := present[entry.FilePath]; !ok && ws.indexer.RemoveFile(entry.FilePath) {
			ws.logger.Debug("Removed file no longer in workspace", "file", entry.FilePath)
			removed++
		}
	}
	return removed
}

// DiscoverFiles walks rootPath and returns the supported source files that
// match options, sorted by key.
func DiscoverFiles(rootPath string, options ScanOptions, logger *slog.Logger) ([]DiscoveredFile, error) {
	for _, pattern := range options.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range options.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", rootPath)
	}

	var files []DiscoveredFile
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if logger != nil {
				logger.Warn("Walk error", "path", path, "error", err)
			}
			return nil
		}
		if path == rootPath {
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if matchesAny(options.Exclude, relPath) || (d.IsDir() && matchesAny(options.Exclude, relPath+"/")) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if options.MaxDepth > 0 && strings.Count(relPath, "/")+1 >= options.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if parser.DetectLanguage(relPath) == parser.LanguageUnknown {
			return nil
		}
		if len(options.Include) > 0 && !matchesAny(options.Include, relPath) {
			return nil
		}

		files = append(files, DiscoveredFile{AbsPath: path, Key: relPath})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchesAny reports whether relPath matches one of the doublestar patterns.
// A leading "**/" also matches at the root.
func matchesAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.Match(pattern, relPath); m {
			return true
		}
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if m, _ := doublestar.Match(rest, relPath); m {
				return true
			}
		}
	}
	return false
}

// processFilesParallel extracts and indexes files on a worker pool.
func (ws *WorkspaceScanner) processFilesParallel(
	ctx context.Context,
	files []DiscoveredFile,
	workers int,
	stats *ScanStats,
	progressCallback ProgressCallback,
) {
	total := len(files)
	done := 0
	report := func(key string) {
		done++
		if progressCallback != nil {
			progressCallback(done, total, key)
		}
	}

	// Workers read and hash lazily, so only a pool's worth of sources is
	// held in memory at once.
	jobs := make([]FileJob, len(files))
	for i, f := range files {
		jobs[i] = FileJob{FilePath: f.AbsPath, FileKey: f.Key, KnownHash: ws.indexer.ContentHash(f.Key), JobID: i}
	}

	numWorkers := util.GetOptimalPoolSizeWithOverride(workers)
	stats.WorkerCount = numWorkers

	pool := NewWorkerPool(ctx, numWorkers, ws.extractor, ws.logger)
	pool.Start()
	defer pool.Stop()

	go func() {
		defer pool.FinishSubmitting()
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	// The index is written only from this goroutine.
	for outcome := range pool.Outcomes() {
		switch {
		case outcome.Unchanged:
			stats.FilesUnchanged++
		case outcome.OK():
			ws.indexer.ReplaceFile(outcome.Result)
			stats.FilesIndexed++
			stats.SymbolsExtracted += len(outcome.Result.Symbols)
		default:
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, FileError{FilePath: outcome.FileKey, Err: outcome.Err})
			ws.logWarning(outcome)
		}
		report(outcome.FileKey)
	}
}

func (ws *WorkspaceScanner) logWarning(outcome FileOutcome) {
	if errors.Is(outcome.Err, context.Canceled) {
		return
	}
	ws.logger.Warn("File extraction failed", "file", outcome.FileKey, "error", outcome.Err)
}

// GetIndexer returns the symbol index the scanner writes to.
func (ws *WorkspaceScanner) GetIndexer() *SymbolIndexer {
	return ws.indexer
}
