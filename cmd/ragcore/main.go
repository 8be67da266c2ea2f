// Package main implements the ragcore CLI: indexing, querying and the MCP and HTTP servers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/config"
	"github.com/dshills/ragcore/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// A missing .env file is not an error
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	logLevel   string
	backend    string
	indexPath  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ragcore",
		Short: "Retrieval-augmented question answering over a document corpus",
		Long: `ragcore chunks and embeds a corpus into a vector index, retrieves the
passages most similar to a question and generates an answer grounded on them.

Configuration is read from built-in defaults, an optional YAML file
(--config or $RAGCORE_CONFIG) and RAGCORE_* environment variables.

Examples:
  # Index a directory of .txt and .md files into a SQLite index
  ragcore index ./docs --backend sqlite --index-path ./ragcore.db

  # Ask a question against it
  ragcore ask "What is the capital of France?" --backend sqlite --index-path ./ragcore.db

  # Serve the corpus to an MCP client over stdio
  ragcore mcp --docs ./docs`,
		Version:      version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.backend, "backend", "", "index backend (memory, sqlite, chromem, qdrant)")
	flags.StringVar(&opts.indexPath, "index-path", "", "index location for the sqlite and chromem backends")

	root.AddCommand(
		newIndexCmd(opts),
		newSearchCmd(opts),
		newAskCmd(opts),
		newEmbedCmd(opts),
		newMCPCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the configuration and applies flag overrides
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.backend != "" {
		cfg.Index.Backend = o.backend
	}
	if o.indexPath != "" {
		cfg.Index.Path = o.indexPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup builds the logger and the application. The caller must Close the
// app and sync the logger.
func (o *globalOptions) setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logging.Sync(logger)
		return nil, nil, err
	}
	return a, logger, nil
}

// withApp runs fn against a freshly built app and tears it down afterwards
func (o *globalOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, logger, err := o.setup(ctx)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close app", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

// indexDocs indexes docs when a corpus path was given
func indexDocs(ctx context.Context, a *app.App, docs string) error {
	if docs == "" {
		return nil
	}
	stats, err := a.IndexPath(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", docs, err)
	}
	a.Logger.Info("corpus indexed",
		zap.String("path", docs),
		zap.Int("documents", stats.DocumentsIndexed),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Duration("duration", stats.Duration),
	)
	return nil
}
