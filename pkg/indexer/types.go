package indexer

import (
	"time"

	"github.com/gnana997/symdex/pkg/extractor"
)

// FileSymbols is one file's entry in the index: the symbols of its latest
// extraction pass plus the pass metadata.
//
// A FileSymbols is replaced as a whole, never edited in place.
type FileSymbols struct {
	*extractor.FileResult

	// IndexedAt is when the pass was swapped into the index.
	IndexedAt time.Time `json:"indexed_at"`
}

// SymbolIndexerConfig configures the symbol indexer behavior.
type SymbolIndexerConfig struct {
	// MaxCachedForests is the number of per-file containment forests kept
	// in the LRU cache. Evicted forests are rebuilt on demand.
	// Default: 256
	MaxCachedForests int

	// MaxCachedPatterns bounds the compiled glob cache used by FindByPattern.
	// Default: 128
	MaxCachedPatterns int

	// Debug enables verbose logging
	Debug bool
}

// DefaultSymbolIndexerConfig returns the default configuration.
func DefaultSymbolIndexerConfig() SymbolIndexerConfig {
	return SymbolIndexerConfig{
		MaxCachedForests:  256,
		MaxCachedPatterns: 128,
	}
}

// SymbolIndexerStats provides statistics about the indexer state.
type SymbolIndexerStats struct {
	// Files is the number of files currently indexed
	Files int `json:"files"`

	// TotalSymbols is the count of symbols currently in the index,
	// shadowed declarations included
	TotalSymbols int `json:"total_symbols"`

	// DistinctPaths is the number of distinct qualified paths
	DistinctPaths int `json:"distinct_paths"`

	// Decorators is the number of distinct decorator names
	Decorators int `json:"decorators"`

	// ShadowedSymbols counts declarations hidden by a later one
	ShadowedSymbols int `json:"shadowed_symbols"`

	// ByKind counts symbols per kind
	ByKind map[extractor.SymbolKind]int `json:"by_kind"`

	// DirtyFiles is the number of files marked for re-extraction
	DirtyFiles int `json:"dirty_files"`

	// Replacements is the number of ReplaceFile calls since start
	Replacements int64 `json:"replacements"`

	// CachedForests is the number of forests currently in the LRU cache
	CachedForests int `json:"cached_forests"`

	// ForestHitRate is the LRU hit ratio (0.0 - 1.0)
	ForestHitRate float64 `json:"forest_hit_rate"`

	// Evictions is the number of forest evictions
	Evictions int64 `json:"evictions"`
}

// ScanOptions configures workspace scanning behavior.
type ScanOptions struct {
	// Include patterns (doublestar syntax, e.g. "**/*.py").
	// If empty, every supported extension is included.
	Include []string

	// Exclude patterns (doublestar syntax, e.g. "**/node_modules/**")
	Exclude []string

	// MaxDepth limits directory traversal depth
	// 0 = unlimited (default)
	MaxDepth int

	// Workers is the extraction worker count (0 = auto)
	Workers int
}

// DefaultScanOptions returns recommended scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include: []string{
			"**/*.py",
			"**/*.pyi",
			"**/*.ts",
			"**/*.tsx",
			"**/*.js",
			"**/*.jsx",
			"**/*.go",
		},
		Exclude: DefaultExcludes(),
	}
}

// DefaultExcludes lists directories that never hold project sources.
func DefaultExcludes() []string {
	return []string{
		"**/.git/**",
		"**/__pycache__/**",
		"**/.venv/**",
		"**/venv/**",
		"**/.tox/**",
		"**/.mypy_cache/**",
		"**/node_modules/**",
		"**/vendor/**",
		"**/dist/**",
		"**/build/**",
		"**/.symdex/**",
	}
}

// ScanStats contains statistics about a workspace scan.
type ScanStats struct {
	// FilesDiscovered is the total number of files found
	FilesDiscovered int

	// FilesIndexed is the number of files successfully indexed
	FilesIndexed int

	// FilesFailed is the number of files whose extraction failed
	FilesFailed int

	// FilesUnchanged is the number of files skipped because their content
	// hash matched the indexed pass
	FilesUnchanged int

	// FilesRemoved is the number of previously indexed files no longer
	// found under the root
	FilesRemoved int

	// SymbolsExtracted is the total number of symbols extracted
	SymbolsExtracted int

	// TotalTimeMs is the total scan duration in milliseconds
	TotalTimeMs int64

	// DiscoveryTimeMs is time spent discovering files
	DiscoveryTimeMs int64

	// IndexingTimeMs is time spent extracting and indexing files
	IndexingTimeMs int64

	// FilesPerSecond is the throughput rate
	FilesPerSecond float64

	// WorkerCount is the number of workers used
	WorkerCount int

	// Errors contains per-file errors (if any)
	Errors []FileError

	// Cancelled indicates if the scan was cancelled
	Cancelled bool

	StartTime time.Time
	EndTime   time.Time
}

// FileError represents an error that occurred while processing a file.
type FileError struct {
	FilePath string
	Err      error
}

func (e FileError) Error() string {
	return e.FilePath + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// ProgressCallback is called after each file of a scan is processed.
//
// Parameters:
//   - done: Number of files processed so far (indexed or failed)
//   - total: Total number of files to process
//   - currentFile: File key of the file just processed
type ProgressCallback func(done, total int, currentFile string)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// DebounceMs is the debounce delay in milliseconds
	// Multiple rapid changes are grouped into a single re-extraction
	// Default: 200ms
	DebounceMs int

	// IgnorePatterns are doublestar patterns, relative to the watched root
	IgnorePatterns []string

	// OnReplace, when set, is called after a file's pass has been swapped
	// into the index. Used to mirror the index into the store.
	OnReplace func(fs *FileSymbols)

	// OnRemove, when set, is called after a file has left the index.
	OnRemove func(fileKey string)
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		DebounceMs: 200,
		IgnorePatterns: append([]string{
			"**/*.swp",
			"**/*.tmp",
			"**/*~",
		}, DefaultExcludes()...),
	}
}
