package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/extractor"
)

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the containment tree of one file",
		Long: `Tree extracts one file and prints its symbols nested by containment:
module, classes, methods, nested classes, functions and lambdas.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, key, err := a.fileKey(args[0])
			if err != nil {
				return err
			}
			source, err := os.ReadFile(abs)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			ex, release := a.newExtractor()
			defer release()

			result, err := ex.ExtractFile(cmd.Context(), key, source)
			if err != nil {
				return err
			}
			forest, err := extractor.BuildForest(result.Symbols)
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), forest)
			return nil
		},
	}
}

func printTree(w io.Writer, forest *extractor.Forest) {
	forest.Walk(func(s *extractor.Symbol, depth int) {
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", depth))
		for _, d := range s.DecoratorNames() {
			b.WriteString("@" + d + " ")
		}
		if s.IsAsync {
			b.WriteString("async ")
		}
		fmt.Fprintf(&b, "%s %s", s.Kind, s.Name)
		if len(s.Bases) > 0 {
			fmt.Fprintf(&b, "(%s)", strings.Join(s.Bases, ", "))
		}
		if s.Alias != "" && s.Alias != s.Name {
			fmt.Fprintf(&b, " as %s", s.Alias)
		}
		if s.Shadowed {
			b.WriteString(" [shadowed]")
		}
		fmt.Fprintf(&b, "  :%d", s.Span.StartLine)
		fmt.Fprintln(w, b.String())
	})
}
