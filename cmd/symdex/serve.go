package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/indexer"
	mcpserver "github.com/gnana997/symdex/pkg/mcp"
	"github.com/gnana997/symdex/pkg/mcplog"
	"github.com/gnana997/symdex/pkg/store"
	"github.com/gnana997/symdex/pkg/util"
)

type serveOptions struct {
	watch   bool
	noSync  bool
	logFile string
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdin/stdout",
		Long: `Serve loads the index, brings it up to date with the workspace, and
answers MCP tool calls over stdio: lookup_by_path, lookup_by_name,
lookup_by_decorator, search_symbols, get_file_symbols, get_symbol_source
and index_stats.

With --watch, edited files are re-extracted as they change and the stored
index follows along. Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-index files as they change")
	cmd.Flags().BoolVar(&opts.noSync, "no-sync", false, "serve the stored index without scanning the workspace first")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "append a JSONL record of every tool call to this file")
	return cmd
}

func runServe(ctx context.Context, a *app, opts serveOptions) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ex, release := a.newExtractor()
	defer release()

	var idx *indexer.SymbolIndexer
	if opts.noSync {
		idx, err = a.loadIndex(ctx, st)
		if err != nil {
			return err
		}
	} else {
		idx = indexer.NewSymbolIndexer(a.cfg.IndexerConfig(), a.logger)
		if _, err := syncWorkspace(ctx, a, st, idx, ex, true, nil); err != nil {
			idx.Close()
			return err
		}
	}
	defer idx.Close()

	sources := util.NewSourceCache(256, a.logger)
	defer sources.Close()

	callLog, err := mcplog.NewLogger(opts.logFile)
	if err != nil {
		return err
	}
	if callLog != nil {
		defer callLog.Close()
	}

	if opts.watch {
		watcher, err := indexer.NewFileWatcher(idx, ex, watchOptions(a, st, sources), a.logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx, a.rootDir); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	a.logger.Info("serving MCP over stdio",
		"root", a.rootDir,
		"files", idx.GetStats().Files,
		"watch", opts.watch)

	return mcpserver.NewServer(idx, sources, a.rootDir, callLog).ServeStdio()
}

// watchOptions mirrors watcher updates into the store and drops stale
// source mappings.
func watchOptions(a *app, st *store.Store, sources *util.SourceCache) indexer.WatchOptions {
	opts := a.cfg.WatchOptions()
	opts.OnReplace = func(fs *indexer.FileSymbols) {
		sources.Invalidate(a.sourcePath(fs.FilePath))
		if err := st.ReplaceFile(context.Background(), fs.FileResult); err != nil {
			a.logger.Error("failed to store re-indexed file", "file", fs.FilePath, "error", err)
		}
	}
	opts.OnRemove = func(key string) {
		sources.Invalidate(a.sourcePath(key))
		if _, err := st.RemoveFile(context.Background(), key); err != nil {
			a.logger.Error("failed to remove file from store", "file", key, "error", err)
		}
	}
	return opts
}
