package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/index"
)

func newEmbedCmd(opts *globalOptions) *cobra.Command {
	var show int

	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Embed texts with the configured provider and compare them",
		Long: `Embed each argument with the configured embedding provider, print the
vector dimension and leading components, and the cosine similarity of every
pair. Useful to check provider credentials and model behavior.

Examples:
  ragcore embed "capital of France" "Paris is the capital of France."
  RAGCORE_EMBEDDING_PROVIDER=openai ragcore embed "hello world"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				vectors, err := a.Embedder.EmbedMany(ctx, args)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Provider: %s\n", a.Embedder.Provider())
				fmt.Fprintf(out, "Model: %s\n", a.Embedder.Model())
				fmt.Fprintf(out, "Dimension: %d\n\n", len(vectors[0]))

				for i, v := range vectors {
					fmt.Fprintf(out, "[%d] %q\n    %s\n", i, preview(args[i], 60), leading(v, show))
				}

				if len(vectors) > 1 {
					fmt.Fprintln(out, "\nCosine similarity:")
					for i := range vectors {
						for j := i + 1; j < len(vectors); j++ {
							fmt.Fprintf(out, "  [%d] ~ [%d]: %.4f\n", i, j, index.CosineSimilarity(vectors[i], vectors[j]))
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&show, "show", 5, "number of leading vector components to print")
	return cmd
}

func leading(v []float32, n int) string {
	if n > len(v) {
		n = len(v)
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%.4f", v[i])
	}
	if n < len(v) {
		parts = append(parts, "...")
	}
	return "[" + strings.Join(parts, " ") + "]"
}
