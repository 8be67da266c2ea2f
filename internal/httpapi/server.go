// Package httpapi serves the RAG orchestrator over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/pkg/types"
)

// maxK bounds the k parameter of search and query
const maxK = 100

// Server provides HTTP endpoints for ragcore.
type Server struct {
	echo         *echo.Echo
	orchestrator *rag.Orchestrator
	logger       *zap.Logger
	config       *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Addr    string
	Backend string // Reported by /api/v1/status

	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer

	// RequestsPerSecond limits API requests per client IP; 0 disables limiting
	RequestsPerSecond float64
}

// NewServer creates a new HTTP server.
func NewServer(o *rag.Orchestrator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: orchestrator cannot be nil", types.ErrInvalidConfiguration)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required for request tracking and debugging", types.ErrInvalidConfiguration)
	}
	if cfg == nil {
		cfg = &Config{Addr: ":8080"}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler set the status before logging it
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return nil
		}
	})

	s := &Server{
		echo:         e,
		orchestrator: o,
		logger:       logger,
		config:       cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	if s.config.RequestsPerSecond > 0 {
		v1.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(s.config.RequestsPerSecond))))
	}
	v1.GET("/status", s.handleStatus)
	v1.POST("/documents", s.handleIndex)
	v1.POST("/search", s.handleSearch)
	v1.POST("/query", s.handleQuery)
}

// Echo exposes the router for additional routes
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports the index size and providers.
func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.orchestrator.Status(c.Request().Context())
	if err != nil {
		return s.apiError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Entries:            st.Entries,
		Dimension:          st.Dimension,
		Indexing:           st.Indexing,
		Backend:            s.config.Backend,
		EmbeddingProvider:  st.Provider,
		EmbeddingModel:     st.Model,
		GenerationProvider: st.GenerationProvider,
		GenerationModel:    st.GenerationModel,
	})
}

// handleIndex builds the index from the request's documents.
func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Documents == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	policy := rag.PolicyReplace
	if req.Append {
		policy = rag.PolicyAppend
	}

	stats, err := s.orchestrator.InitializeWithPolicy(c.Request().Context(), toDocuments(req.Documents), policy)
	if err != nil {
		return s.apiError(err)
	}
	return c.JSON(http.StatusOK, toIndexResponse(stats, policy))
}

// handleSearch returns scored passages for a query.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.K == 0 {
		req.K = s.orchestrator.TopK()
	}
	if req.K < 1 || req.K > maxK {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("k must be between 1 and %d", maxK))
	}

	results, err := s.orchestrator.Search(c.Request().Context(), req.Query, req.K)
	if err != nil {
		return s.apiError(err)
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Results: toPassages(results)})
}

// handleQuery answers a prompt from the indexed documents.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}
	if req.K < 0 || req.K > maxK {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("k must be between 1 and %d", maxK))
	}

	answer, err := s.orchestrator.QueryK(c.Request().Context(), req.Prompt, req.K)
	if err != nil {
		return s.apiError(err)
	}
	return c.JSON(http.StatusOK, QueryResponse{
		Answer:       answer.Text,
		Insufficient: answer.Insufficient,
		Sources:      toPassages(answer.Passages),
	})
}

// apiError maps orchestrator errors to HTTP status codes
func (s *Server) apiError(err error) error {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

// StatusFor returns the HTTP status for an orchestrator error
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidArgument), errors.Is(err, types.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrIndexingInProgress):
		return http.StatusConflict
	case errors.Is(err, types.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
