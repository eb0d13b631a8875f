package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/config"
	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/frontend"
	"github.com/gnana997/symdex/pkg/indexer"
	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/store"
	"github.com/gnana997/symdex/pkg/util"
)

// app carries the state every subcommand shares: the workspace root, its
// configuration and the process logger.
type app struct {
	rootDir  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "symdex",
		Short: "Index classes, functions, methods and lambdas in Python, TypeScript and Go code",
		Long: `symdex extracts a flat, queryable index of declarations from source files:
classes, nested classes, functions, methods and lambdas, with decorators,
base classes, parameters and fully qualified dotted paths.

The index is kept in .symdex/index.db under the workspace root and can be
queried from the command line or served to AI agents over MCP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.rootDir, "root", "C", ".", "workspace root")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newExtractCmd(a),
		newIndexCmd(a),
		newQueryCmd(a),
		newShowCmd(a),
		newTreeCmd(a),
		newServeCmd(a),
		newInitCmd(a),
		newSetupCmd(a),
	)
	return cmd
}

// load resolves the root, reads configuration and builds the logger.
func (a *app) load() error {
	root, err := filepath.Abs(a.rootDir)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	a.rootDir = root

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := util.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := util.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = util.NewLogger(util.LoggerConfig{Level: level, Format: format, Output: os.Stderr})
	return nil
}

// newExtractor returns an extractor and the function releasing its parsers.
func (a *app) newExtractor() (*extractor.Extractor, func()) {
	pm := parser.NewParserManagerWithPoolSize(a.logger, a.cfg.Index.Workers)
	ex := extractor.NewExtractor(frontend.New(pm, a.logger), a.logger)
	return ex, func() {
		if err := pm.Close(); err != nil {
			a.logger.Warn("closing parsers", "error", err)
		}
	}
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.DatabasePath(a.rootDir))
}

// loadIndex fills a fresh in-memory index from the store.
func (a *app) loadIndex(ctx context.Context, st *store.Store) (*indexer.SymbolIndexer, error) {
	idx := indexer.NewSymbolIndexer(a.cfg.IndexerConfig(), a.logger)
	results, err := st.LoadAll(ctx)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("loading index: %w", err)
	}
	for _, r := range results {
		idx.ReplaceFile(r)
	}
	a.logger.Debug("index loaded from store", "files", len(results), "db", st.DBPath())
	return idx, nil
}

// fileKey returns the absolute path of a file argument and its index key:
// the slash path relative to the root, or the base name when the file lies
// outside the root.
func (a *app) fileKey(arg string) (abs, key string, err error) {
	abs, err = filepath.Abs(arg)
	if err != nil {
		return "", "", err
	}
	rel, err := filepath.Rel(a.rootDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs, filepath.Base(abs), nil
	}
	return abs, filepath.ToSlash(rel), nil
}

// sourcePath maps an index key back to a path on disk.
func (a *app) sourcePath(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(a.rootDir, filepath.FromSlash(key))
}
