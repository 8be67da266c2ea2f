package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/loader"
	"github.com/dshills/ragcore/internal/rag"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var appendDocs bool

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Chunk, embed and index a corpus",
		Long: `Index a corpus directory (every .txt and .md file, recursively) or a YAML
manifest of documents.

By default the new corpus replaces the index once it is fully embedded. With --append the new documents are
added to the existing entries; the embedding model must not change between
runs.

Examples:
  ragcore index ./docs --backend sqlite --index-path ./ragcore.db
  ragcore index corpus.yaml --append --backend chromem --index-path ./chromem`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				docs, err := loader.Load(args[0])
				if err != nil {
					return err
				}

				policy := rag.PolicyReplace
				if appendDocs {
					policy = rag.PolicyAppend
				}

				stats, err := a.Orchestrator.InitializeWithPolicy(ctx, docs, policy)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Indexed %d documents (%d skipped) into %d chunks in %s\n",
					stats.DocumentsIndexed, stats.DocumentsSkipped, stats.ChunksCreated, stats.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "Estimated tokens: %d\n", stats.EstimatedTokens)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&appendDocs, "append", false, "add to the existing index instead of replacing it")
	return cmd
}
