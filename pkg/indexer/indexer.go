package indexer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/symdex/pkg/extractor"
)

// SymbolIndexer is the queryable symbol table built from extraction passes.
//
// **Architecture:**
//   - Primary map: dotted qualified path → declarations, last one wins
//   - Secondary maps: simple name → symbols, decorator name → symbols
//   - Reverse index: file key → symbols, for whole-file replacement
//   - LRU cache of per-file containment forests for Children queries
//   - Lazy invalidation: the watcher marks files dirty before re-extracting
//
// **Thread Safety:**
//   - Uses sync.RWMutex for concurrent access
//   - Multiple readers, single writer pattern
//   - A file's symbol set is swapped under one write lock, so readers see
//     either the old pass or the new one, never a mix
//
// **Usage:**
//
//	idx := NewSymbolIndexer(DefaultSymbolIndexerConfig(), logger)
//	defer idx.Close()
//
//	result, _ := ex.ExtractFile(ctx, "pkg/models.py", src)
//	idx.ReplaceFile(result)
//
//	sym, ok := idx.LookupByPath("pkg.models.User.save")
//	routes := idx.LookupByDecorator("app.route")
type SymbolIndexer struct {
	// Primary storage: dotted path → declarations in indexing order
	byPath map[string][]*extractor.Symbol

	byID        map[string]*extractor.Symbol
	byName      map[string]map[string]*extractor.Symbol
	byDecorator map[string]map[string]*extractor.Symbol

	// Reverse index: file key → indexed pass
	files map[string]*FileSymbols

	// Lazy invalidation tracking: file key → isDirty
	dirtyFiles map[string]bool

	forests  *lru.Cache[string, *extractor.Forest]
	patterns *lru.Cache[string, glob.Glob]

	mu sync.RWMutex

	replacements atomic.Int64
	forestHits   atomic.Int64
	forestMisses atomic.Int64
	evictions    atomic.Int64

	config SymbolIndexerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSymbolIndexer creates an empty symbol index.
func NewSymbolIndexer(config SymbolIndexerConfig, logger *slog.Logger) *SymbolIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultSymbolIndexerConfig()
	if config.MaxCachedForests <= 0 {
		config.MaxCachedForests = defaults.MaxCachedForests
	}
	if config.MaxCachedPatterns <= 0 {
		config.MaxCachedPatterns = defaults.MaxCachedPatterns
	}

	si := &SymbolIndexer{
		byPath:      make(map[string][]*extractor.Symbol, 1024),
		byID:        make(map[string]*extractor.Symbol, 1024),
		byName:      make(map[string]map[string]*extractor.Symbol, 512),
		byDecorator: make(map[string]map[string]*extractor.Symbol),
		files:       make(map[string]*FileSymbols, 128),
		dirtyFiles:  make(map[string]bool),
		config:      config,
		logger:      logger,
		now:         time.Now,
	}

	forests, err := lru.NewWithEvict(config.MaxCachedForests, func(key string, _ *extractor.Forest) {
		si.evictions.Add(1)
		if config.Debug {
			logger.Debug("LRU evicting forest", "file", key)
		}
	})
	if err != nil {
		// Only reachable with a non-positive size, which the defaults rule out.
		panic(fmt.Sprintf("failed to create forest cache: %v", err))
	}
	patterns, err := lru.New[string, glob.Glob](config.MaxCachedPatterns)
	if err != nil {
		panic(fmt.Sprintf("failed to create pattern cache: %v", err))
	}
	si.forests = forests
	si.patterns = patterns

	logger.Debug("SymbolIndexer initialized",
		"max_cached_forests", config.MaxCachedForests,
		"max_cached_patterns", config.MaxCachedPatterns)
	return si
}

// ReplaceFile swaps in the symbols of one extraction pass, discarding
// everything previously indexed for result.FilePath.
//
// **Performance:** O(n) in the symbols of the old and new pass.
//
// **Thread Safety:** Safe for concurrent calls. The swap is atomic with
// respect to every query method.
func (si *SymbolIndexer) ReplaceFile(result *extractor.FileResult) *FileSymbols {
	fs := &FileSymbols{FileResult: result, IndexedAt: si.now()}

	si.mu.Lock()
	defer si.mu.Unlock()

	si.removeFileUnsafe(result.FilePath)

	for _, sym := range result.Symbols {
		path := sym.Path()
		si.byPath[path] = append(si.byPath[path], sym)
		si.byID[sym.ID] = sym
		addTo(si.byName, sym.Name, sym)
		for _, d := range sym.Decorators {
			if d.Name != "" {
				addTo(si.byDecorator, d.Name, sym)
			}
		}
	}
	si.files[result.FilePath] = fs
	si.replacements.Add(1)

	if si.config.Debug {
		si.logger.Debug("Replaced file symbols",
			"file", result.FilePath,
			"pass_id", result.PassID,
			"symbols", len(result.Symbols))
	}
	return fs
}

func addTo(m map[string]map[string]*extractor.Symbol, key string, sym *extractor.Symbol) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]*extractor.Symbol)
		m[key] = set
	}
	set[sym.ID] = sym
}

func removeFrom(m map[string]map[string]*extractor.Symbol, key string, sym *extractor.Symbol) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, sym.ID)
	if len(set) == 0 {
		delete(m, key)
	}
}

// LookupByPath returns the visible declaration at a dotted qualified path.
// When a path is declared more than once, the last declaration wins.
//
// **Thread Safety:** Safe for concurrent calls.
func (si *SymbolIndexer) LookupByPath(path string) (*extractor.Symbol, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	decls := si.byPath[path]
	if len(decls) == 0 {
		return nil, false
	}
	return decls[len(decls)-1], true
}

// LookupAllByPath returns every declaration at path, shadowed ones first.
func (si *SymbolIndexer) LookupAllByPath(path string) []*extractor.Symbol {
	si.mu.RLock()
	defer si.mu.RUnlock()

	decls := si.byPath[path]
	out := make([]*extractor.Symbol, len(decls))
	copy(out, decls)
	return out
}

// LookupByName returns all symbols with the given simple name, ordered by
// file and position.
func (si *SymbolIndexer) LookupByName(name string) []*extractor.Symbol {
	si.mu.RLock()
	defer si.mu.RUnlock()

	return sortedSet(si.byName[name])
}

// LookupByDecorator returns all symbols carrying a decorator whose dotted
// name equals name exactly ("app.route", not "route").
func (si *SymbolIndexer) LookupByDecorator(name string) []*extractor.Symbol {
	si.mu.RLock()
	defer si.mu.RUnlock()

	return sortedSet(si.byDecorator[strings.TrimPrefix(name, "@")])
}

// GetSymbol returns a symbol by ID.
func (si *SymbolIndexer) GetSymbol(id string) (*extractor.Symbol, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	sym, ok := si.byID[id]
	return sym, ok
}

// FindByPattern matches a glob against qualified paths. Path segments are
// separated by '.', so "*.User.*" matches the direct members of every User
// class. A pattern without a dot is matched against simple names instead.
//
// **Thread Safety:** Safe for concurrent calls.
func (si *SymbolIndexer) FindByPattern(pattern string) ([]*extractor.Symbol, error) {
	g, err := si.compile(pattern)
	if err != nil {
		return nil, err
	}
	byName := !strings.Contains(pattern, ".")

	si.mu.RLock()
	defer si.mu.RUnlock()

	var out []*extractor.Symbol
	if byName {
		for name, set := range si.byName {
			if g.Match(name) {
				for _, sym := range set {
					out = append(out, sym)
				}
			}
		}
	} else {
		for path, decls := range si.byPath {
			if g.Match(path) {
				out = append(out, decls...)
			}
		}
	}
	sortSymbols(out)
	return out, nil
}

func (si *SymbolIndexer) compile(pattern string) (glob.Glob, error) {
	if g, ok := si.patterns.Get(pattern); ok {
		return g, nil
	}
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	si.patterns.Add(pattern, g)
	return g, nil
}

// FindSymbols searches for symbols matching a predicate.
//
// **Performance:** O(n) where n is total number of symbols.
//
// **Example:**
//
//	// Find all async methods
//	methods := idx.FindSymbols(func(s *extractor.Symbol) bool {
//	    return s.Kind == extractor.SymbolKindMethod && s.IsAsync
//	})
func (si *SymbolIndexer) FindSymbols(predicate func(*extractor.Symbol) bool) []*extractor.Symbol {
	si.mu.RLock()
	defer si.mu.RUnlock()

	result := make([]*extractor.Symbol, 0, 64)
	for _, sym := range si.byID {
		if predicate(sym) {
			result = append(result, sym)
		}
	}
	sortSymbols(result)
	return result
}

// Children returns the direct children of a symbol in source order.
func (si *SymbolIndexer) Children(id string) []*extractor.Symbol {
	si.mu.RLock()
	defer si.mu.RUnlock()

	sym, ok := si.byID[id]
	if !ok {
		return nil
	}
	forest := si.forestUnsafe(sym.FilePath)
	if forest == nil {
		return nil
	}
	return forest.Children(id)
}

// Forest returns the containment forest of one indexed file.
func (si *SymbolIndexer) Forest(fileKey string) (*extractor.Forest, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	forest := si.forestUnsafe(fileKey)
	return forest, forest != nil
}

// forestUnsafe builds or fetches the cached forest. Requires the read lock.
func (si *SymbolIndexer) forestUnsafe(fileKey string) *extractor.Forest {
	fs, ok := si.files[fileKey]
	if !ok {
		return nil
	}
	if forest, ok := si.forests.Get(fs.PassID); ok {
		si.forestHits.Add(1)
		return forest
	}
	si.forestMisses.Add(1)

	forest, err := extractor.BuildForest(fs.Symbols)
	if err != nil {
		si.logger.Error("indexed pass is not a forest", "file", fileKey, "error", err)
		return nil
	}
	si.forests.Add(fs.PassID, forest)
	return forest
}

// GetFileSymbols returns the indexed pass for a file key.
//
// **Thread Safety:** Safe for concurrent calls.
func (si *SymbolIndexer) GetFileSymbols(fileKey string) (*FileSymbols, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	fs, ok := si.files[fileKey]
	return fs, ok
}

// GetAllFileSymbols returns every indexed file, ordered by file key.
//
// **Thread Safety:** Safe for concurrent calls. Returns a snapshot.
func (si *SymbolIndexer) GetAllFileSymbols() []*FileSymbols {
	si.mu.RLock()
	defer si.mu.RUnlock()

	out := make([]*FileSymbols, 0, len(si.files))
	for _, fs := range si.files {
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// FilesUnder returns the sorted keys of indexed files below the directory
// key dir ("" means every file).
func (si *SymbolIndexer) FilesUnder(dir string) []string {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	si.mu.RLock()
	defer si.mu.RUnlock()

	var keys []string
	for key := range si.files {
		if dir == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// ContentHash returns the content hash of the indexed pass for a file,
// or "" when the file is not indexed.
func (si *SymbolIndexer) ContentHash(fileKey string) string {
	si.mu.RLock()
	defer si.mu.RUnlock()

	if fs, ok := si.files[fileKey]; ok {
		return fs.ContentHash
	}
	return ""
}

// InvalidateFile marks a file as dirty for lazy re-extraction.
//
// **Lazy Invalidation:**
//   - Does NOT remove symbols; queries keep answering from the old pass
//   - Marks file as dirty (O(1) operation)
//   - The next ReplaceFile or RemoveFile for the file clears the flag
//
// **Thread Safety:** Safe for concurrent calls.
func (si *SymbolIndexer) InvalidateFile(fileKey string) {
	si.mu.Lock()
	si.dirtyFiles[fileKey] = true
	si.mu.Unlock()

	if si.config.Debug {
		si.logger.Debug("Invalidated file", "file", fileKey)
	}
}

// IsDirty checks if a file is marked for re-extraction.
func (si *SymbolIndexer) IsDirty(fileKey string) bool {
	si.mu.RLock()
	defer si.mu.RUnlock()

	return si.dirtyFiles[fileKey]
}

// ClearDirty drops the dirty flag without replacing the file, for a change
// event that left the content as indexed.
func (si *SymbolIndexer) ClearDirty(fileKey string) {
	si.mu.Lock()
	delete(si.dirtyFiles, fileKey)
	si.mu.Unlock()
}

// RemoveFile removes a file and its symbols from the index. It reports
// whether the file was indexed.
//
// **Thread Safety:** Safe for concurrent calls.
func (si *SymbolIndexer) RemoveFile(fileKey string) bool {
	si.mu.Lock()
	defer si.mu.Unlock()

	removed := si.removeFileUnsafe(fileKey)
	if removed && si.config.Debug {
		si.logger.Debug("Removed file", "file", fileKey)
	}
	return removed
}

// removeFileUnsafe drops every symbol of a file.
//
// **IMPORTANT:** Must be called with write lock held.
func (si *SymbolIndexer) removeFileUnsafe(fileKey string) bool {
	delete(si.dirtyFiles, fileKey)

	fs, ok := si.files[fileKey]
	if !ok {
		return false
	}
	si.forests.Remove(fs.PassID)

	paths := make(map[string]struct{}, len(fs.Symbols))
	for _, sym := range fs.Symbols {
		paths[sym.Path()] = struct{}{}
		delete(si.byID, sym.ID)
		removeFrom(si.byName, sym.Name, sym)
		for _, d := range sym.Decorators {
			removeFrom(si.byDecorator, d.Name, sym)
		}
	}
	for path := range paths {
		kept := si.byPath[path][:0]
		for _, sym := range si.byPath[path] {
			if sym.FilePath != fileKey {
				kept = append(kept, sym)
			}
		}
		if len(kept) == 0 {
			delete(si.byPath, path)
		} else {
			si.byPath[path] = kept
		}
	}
	delete(si.files, fileKey)
	return true
}

// GetStats returns current indexer statistics.
//
// **Thread Safety:** Safe for concurrent calls.
func (si *SymbolIndexer) GetStats() SymbolIndexerStats {
	si.mu.RLock()
	stats := SymbolIndexerStats{
		Files:         len(si.files),
		TotalSymbols:  len(si.byID),
		DistinctPaths: len(si.byPath),
		Decorators:    len(si.byDecorator),
		DirtyFiles:    len(si.dirtyFiles),
		ByKind:        make(map[extractor.SymbolKind]int),
	}
	for _, sym := range si.byID {
		stats.ByKind[sym.Kind]++
		if sym.Shadowed {
			stats.ShadowedSymbols++
		}
	}
	si.mu.RUnlock()

	hits := si.forestHits.Load()
	total := hits + si.forestMisses.Load()
	if total > 0 {
		stats.ForestHitRate = float64(hits) / float64(total)
	}
	stats.Replacements = si.replacements.Load()
	stats.CachedForests = si.forests.Len()
	stats.Evictions = si.evictions.Load()
	return stats
}

// Close releases cached state. The index must not be used afterwards.
func (si *SymbolIndexer) Close() {
	si.mu.Lock()
	defer si.mu.Unlock()

	si.forests.Purge()
	si.patterns.Purge()
	si.logger.Debug("SymbolIndexer closed", "files", len(si.files))
}

func sortedSet(set map[string]*extractor.Symbol) []*extractor.Symbol {
	out := make([]*extractor.Symbol, 0, len(set))
	for _, sym := range set {
		out = append(out, sym)
	}
	sortSymbols(out)
	return out
}

// sortSymbols orders by file key, then source position.
func sortSymbols(syms []*extractor.Symbol) {
	sort.Slice(syms, func(i, j int) bool {
		a, b := syms[i], syms[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Span.StartByte != b.Span.StartByte {
			return a.Span.StartByte < b.Span.StartByte
		}
		if len(a.QualifiedPath) != len(b.QualifiedPath) {
			return len(a.QualifiedPath) < len(b.QualifiedPath)
		}
		return a.ID < b.ID
	})
}
