package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/indexer"
	"github.com/gnana997/symdex/pkg/store"
)

type indexOptions struct {
	quiet   bool
	full    bool
	workers int
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions
	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index every supported file under the workspace root",
		Long: `Index walks the workspace (or dir, which then becomes the root), extracts
symbols from every file matching paths.include, and stores them in the
index database.

Files whose content is unchanged since the last run are skipped, and files
that disappeared are dropped. A file with a syntax error is reported and
keeps its previous entry; it never fails the run.

Examples:
  symdex index
  symdex index --full ../other-project`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.rootDir = args[0]
				if err := a.load(); err != nil {
					return err
				}
			}
			return runIndex(cmd, a, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "disable the progress bar and summary")
	cmd.Flags().BoolVar(&opts.full, "full", false, "re-extract every file, ignoring the stored index")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "extraction workers (default: index.workers or auto)")
	return cmd
}

func runIndex(cmd *cobra.Command, a *app, opts indexOptions) error {
	ctx := cmd.Context()
	if opts.workers > 0 {
		a.cfg.Index.Workers = opts.workers
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	idx := indexer.NewSymbolIndexer(a.cfg.IndexerConfig(), a.logger)
	defer idx.Close()

	ex, release := a.newExtractor()
	defer release()

	var progress indexer.ProgressCallback
	if !opts.quiet {
		progress = newScanProgress(os.Stderr)
	}

	sum, err := syncWorkspace(ctx, a, st, idx, ex, !opts.full, progress)
	if err != nil {
		return err
	}

	if !opts.quiet {
		sum.print(cmd.OutOrStdout(), st.DBPath())
	}
	return nil
}

// syncSummary reports what one workspace sync did.
type syncSummary struct {
	scan      *indexer.ScanStats
	persisted int
	removed   int
}

func (s syncSummary) print(w io.Writer, dbPath string) {
	fmt.Fprintf(w, "Indexed %d files (%d unchanged, %d failed, %d removed), %d symbols in %s\n",
		s.scan.FilesIndexed, s.scan.FilesUnchanged, s.scan.FilesFailed, s.removed,
		s.scan.SymbolsExtracted, time.Duration(s.scan.TotalTimeMs)*time.Millisecond)
	for _, fe := range s.scan.Errors {
		fmt.Fprintf(w, "  ! %v\n", fe.Err)
	}
	fmt.Fprintf(w, "Index: %s\n", dbPath)
}

// syncWorkspace brings st and idx in line with the files on disk. With
// incremental set, idx is first filled from st so unchanged files are not
// re-extracted. Files whose pass changed are written back to st, and stored
// files no longer present are deleted from it.
func syncWorkspace(
	ctx context.Context,
	a *app,
	st *store.Store,
	idx *indexer.SymbolIndexer,
	ex *extractor.Extractor,
	incremental bool,
	progress indexer.ProgressCallback,
) (syncSummary, error) {
	var sum syncSummary

	stored, err := st.Files(ctx)
	if err != nil {
		return sum, err
	}
	storedPass := make(map[string]string, len(stored))
	for _, f := range stored {
		storedPass[f.FileKey] = f.PassID
	}

	if incremental {
		results, err := st.LoadAll(ctx)
		if err != nil {
			return sum, err
		}
		for _, r := range results {
			idx.ReplaceFile(r)
		}
	}

	scanner := indexer.NewWorkspaceScanner(ex, idx, a.logger)
	sum.scan, err = scanner.ScanWorkspace(ctx, a.rootDir, a.cfg.ScanOptions(), progress)
	if err != nil {
		return sum, err
	}

	for _, fs := range idx.GetAllFileSymbols() {
		pass, ok := storedPass[fs.FilePath]
		delete(storedPass, fs.FilePath)
		if ok && pass == fs.PassID {
			continue
		}
		if err := st.ReplaceFile(ctx, fs.FileResult); err != nil {
			return sum, fmt.Errorf("storing %s: %w", fs.FilePath, err)
		}
		sum.persisted++
	}
	for key := range storedPass {
		if _, err := st.RemoveFile(ctx, key); err != nil {
			return sum, fmt.Errorf("removing %s: %w", key, err)
		}
		sum.removed++
	}

	a.logger.Info("workspace synced",
		"persisted", sum.persisted,
		"removed", sum.removed,
		"db", st.DBPath())
	return sum, nil
}

// newScanProgress returns a progress callback drawing a bar on w. The bar
// is created on the first callback, once the file total is known.
func newScanProgress(w io.Writer) indexer.ProgressCallback {
	var bar *progressbar.ProgressBar
	return func(done, total int, _ string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("Indexing files"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("files/s"),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}
		_ = bar.Set(done)
	}
}
