package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/store"
)

type queryOptions struct {
	json  bool
	limit int
	kind  string
}

func newQueryCmd(a *app) *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Look up symbols in the index",
		Long: `Query reads the index built by "symdex index".

  path       resolve a dotted qualified path (last declaration wins)
  name       every symbol with a simple name
  decorator  every symbol carrying a decorator, by exact dotted name
  search     glob over dotted paths ('*' = one segment, '**' = any),
             or over simple names when the pattern has no dot`,
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	cmd.PersistentFlags().IntVarP(&opts.limit, "limit", "n", 0, "maximum results (0 = all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path <qualified.path>",
			Short: "Resolve a qualified path",
			Args:  cobra.ExactArgs(1),
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
				return printSymbols(cmd.OutOrStdout(), []*extractor.Symbol{sym}, opts)
			},
		},
		&cobra.Command{
			Use:   "name <name>",
			Short: "Find symbols by simple name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				syms, err := st.LookupByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printSymbols(cmd.OutOrStdout(), syms, opts)
			},
		},
		&cobra.Command{
			Use:   "decorator <name>",
			Short: "Find symbols by decorator",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				syms, err := st.LookupByDecorator(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printSymbols(cmd.OutOrStdout(), syms, opts)
			},
		},
		newSearchCmd(a, &opts),
	)
	return cmd
}

func newSearchCmd(a *app, opts *queryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Glob search over qualified paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			idx, err := a.loadIndex(cmd.Context(), st)
			if err != nil {
				return err
			}
			defer idx.Close()

			syms, err := idx.FindByPattern(args[0])
			if err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}
			if opts.kind != "" {
				kind := extractor.SymbolKind(opts.kind)
				filtered := syms[:0]
				for _, s := range syms {
					if s.Kind == kind {
						filtered = append(filtered, s)
					}
				}
				syms = filtered
			}
			return printSymbols(cmd.OutOrStdout(), syms, *opts)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "", "only symbols of this kind (class, method, ...)")
	return cmd
}

func printSymbols(w io.Writer, syms []*extractor.Symbol, opts queryOptions) error {
	if opts.limit > 0 && len(syms) > opts.limit {
		syms = syms[:opts.limit]
	}

	if opts.json {
		if syms == nil {
			syms = []*extractor.Symbol{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(syms)
	}

	if len(syms) == 0 {
		fmt.Fprintln(w, "No symbols found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tLOCATION\tDECORATORS")
	for _, s := range syms {
		path := s.Path()
		if s.Shadowed {
			path += " (shadowed)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s:%d\t%s\n",
			path, s.Kind, s.FilePath, s.Span.StartLine, strings.Join(s.DecoratorNames(), ", "))
	}
	return tw.Flush()
}
