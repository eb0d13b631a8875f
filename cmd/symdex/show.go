package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/store"
	"github.com/gnana997/symdex/pkg/util"
)

func newShowCmd(a *app) *cobra.Command {
	var withDecorators bool
	cmd := &cobra.Command{
		Use:   "show <qualified.path>",
		Short: "Print the source of a symbol",
		Long: `Show resolves a qualified path in the index and prints the declaration's
source text, read from the file on disk.

If the file changed since it was indexed the printed range may be stale;
run "symdex index" first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sym, err := st.LookupByPath(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no symbol at path %q", args[0])
			}
			if err != nil {
				return err
			}

			sources := util.NewSourceCache(1, a.logger)
			defer sources.Close()

			text, err := sources.Slice(a.sourcePath(sym.FilePath), sym.Span.StartByte, sym.Span.EndByte)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "# %s (%s) %s:%d-%d\n", sym.Path(), sym.Kind, sym.FilePath, sym.Span.StartLine, sym.Span.EndLine)
			if withDecorators {
				for _, d := range sym.Decorators {
					fmt.Fprintf(w, "@%s\n", strings.TrimPrefix(d.Raw, "@"))
				}
			}
			fmt.Fprintln(w, strings.TrimRight(text, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&withDecorators, "decorators", "d", false, "print decorators above the declaration")
	return cmd
}
