package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/httpapi"
	"github.com/dshills/ragcore/internal/loader"
	"github.com/dshills/ragcore/internal/rag"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		docs     string
		addr     string
		watch    bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Run the HTTP API (/api/v1/documents, /api/v1/search, /api/v1/query,
/api/v1/status) with /health and Prometheus /metrics.

With --watch the --docs directory is re-indexed whenever a .txt or .md file
under it changes.

Examples:
  ragcore serve --docs ./docs
  ragcore serve --docs ./docs --watch --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch && docs == "" {
				return errors.New("--watch requires --docs")
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := indexDocs(ctx, a, docs); err != nil {
					return err
				}

				cfg := a.Config.Server
				if addr != "" {
					cfg.HTTPAddr = addr
				}

				server, err := httpapi.NewServer(a.Orchestrator, a.Logger.Named("http"), &httpapi.Config{
					Addr:              cfg.HTTPAddr,
					Backend:           a.Config.Index.Backend,
					Gatherer:          a.Registry,
					RequestsPerSecond: cfg.RequestsPerSecond,
				})
				if err != nil {
					return err
				}

				if watch {
					w, err := loader.NewWatcher(docs,
						loader.WithDebounce(debounce),
						loader.WithWatchLogger(a.Logger.Named("watch")),
					)
					if err != nil {
						return fmt.Errorf("failed to watch %s: %w", docs, err)
					}
					defer w.Close()

					go func() {
						if err := w.Run(ctx, func(ctx context.Context) { reindex(ctx, a, docs) }); err != nil {
							a.Logger.Error("watcher stopped", zap.Error(err))
						}
					}()
				}

				errCh := make(chan error, 1)
				go func() {
					errCh <- server.Start()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				a.Logger.Info("received shutdown signal")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("http server shutdown: %w", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&docs, "docs", "", "corpus directory or manifest to index at startup")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-index --docs when files change")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before re-indexing")
	return cmd
}

// reindex rebuilds the index from path. When another build is running it
// waits for that build and then reloads, so the latest files are indexed.
func reindex(ctx context.Context, a *app.App, path string) {
	for {
		docs, err := loader.Load(path)
		if err != nil {
			a.Logger.Warn("failed to reload corpus", zap.String("path", path), zap.Error(err))
			return
		}

		stats, err := a.Orchestrator.InitializeWithPolicy(ctx, docs, rag.PolicyReplace)
		switch {
		case errors.Is(err, rag.ErrIndexingInProgress):
			a.Logger.Info("index build already running, reloading when it finishes")
			if err := a.Orchestrator.WaitIdle(ctx); err != nil {
				return
			}
			continue
		case err != nil:
			a.Logger.Error("failed to re-index corpus, previous index kept", zap.String("path", path), zap.Error(err))
		default:
			a.Logger.Info("corpus re-indexed",
				zap.String("path", path),
				zap.Int("documents", stats.DocumentsIndexed),
				zap.Int("chunks", stats.ChunksCreated),
			)
		}
		return
	}
}
