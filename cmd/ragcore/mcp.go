package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/mcp"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	var docs string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the corpus to an MCP client over stdio",
		Long: `Run an MCP server on stdin/stdout exposing the index_documents, search,
ask and get_status tools. Logs go to stderr; stdout is reserved for the
protocol.

Examples:
  ragcore mcp --docs ./docs
  ragcore mcp --backend sqlite --index-path ~/.ragcore/index.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := indexDocs(ctx, a, docs); err != nil {
					return err
				}

				server, err := mcp.NewServer(a.Orchestrator,
					mcp.WithBackend(a.Config.Index.Backend),
					mcp.WithLogger(a.Logger.Named("mcp")),
				)
				if err != nil {
					return err
				}

				a.Logger.Info("mcp server ready, listening on stdio", zap.String("version", version))
				if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
					return err
				}
				a.Logger.Info("mcp server stopped")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&docs, "docs", "", "corpus directory or manifest to index at startup")
	return cmd
}
