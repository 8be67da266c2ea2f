package mcp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "ragcore"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server exposes a RAG orchestrator as MCP tools
type Server struct {
	mcp          *server.MCPServer
	orchestrator *rag.Orchestrator
	backend      string
	logger       *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithBackend names the index backend reported by get_status
func WithBackend(name string) Option {
	return func(s *Server) {
		s.backend = name
	}
}

// WithLogger sets the logger. It must not write to stdout.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an MCP server backed by o
func NewServer(o *rag.Orchestrator, opts ...Option) (*Server, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: mcp server requires an orchestrator", types.ErrInvalidConfiguration)
	}

	s := &Server{
		orchestrator: o,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve runs the MCP server on stdio until ctx is canceled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the MCP protocol over an arbitrary reader/writer pair
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio", zap.String("backend", s.backend))
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(askTool(), s.handleAsk)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
