/*
Package app builds a ragcore pipeline from configuration.

New resolves the embedding and generation providers (detecting them from the
environment when unset), opens the configured index backend and assembles the
chunker, retriever and orchestrator around them:

	cfg, _ := config.Load("")
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.IndexPath(ctx, "./docs")
	answer, err := a.Orchestrator.Query(ctx, "What is the capital of France?")

The same App backs the CLI commands, the MCP server and the HTTP API.
*/
package app
