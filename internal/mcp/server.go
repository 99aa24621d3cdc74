package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docsearch/internal/auth"
	"github.com/dshills/docsearch/internal/backfill"
	"github.com/dshills/docsearch/internal/documents"
	"github.com/dshills/docsearch/internal/embedder"
	"github.com/dshills/docsearch/internal/ratelimit"
	"github.com/dshills/docsearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// RateLimitKey is the limiter key shared by every stdio call
	RateLimitKey = "stdio"
)

// StatsProvider reports corpus statistics for get_status
type StatsProvider interface {
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// Deps wires a Server. Limiter is optional.
type Deps struct {
	Documents  *documents.Service
	Reconciler *backfill.Reconciler
	Stats      StatsProvider
	Embedder   embedder.Embedder
	Auth       *auth.APIKeyChecker
	Limiter    *ratelimit.Limiter
	BuildMode  string
	BatchSize  int
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	docs      *documents.Service
	reconcile *backfill.Reconciler
	stats     StatsProvider
	embedder  embedder.Embedder
	auth      *auth.APIKeyChecker
	limiter   *ratelimit.Limiter
	buildMode string
	batchSize int
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(d Deps) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		docs:      d.Documents,
		reconcile: d.Reconciler,
		stats:     d.Stats,
		embedder:  d.Embedder,
		auth:      d.Auth,
		limiter:   d.Limiter,
		buildMode: d.BuildMode,
		batchSize: d.BatchSize,
	}
	if s.auth == nil {
		s.auth = auth.NewAPIKeyChecker("")
	}
	if s.batchSize <= 0 {
		s.batchSize = backfill.DefaultBatchSize
	}

	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(createDocumentTool(), s.limited(s.handleCreateDocument))
	s.mcp.AddTool(searchDocumentsTool(), s.limited(s.handleSearchDocuments))
	s.mcp.AddTool(fillEmbeddingsTool(), s.limited(s.handleFillEmbeddings))
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// limited rejects calls beyond the shared stdio rate limit
func (s *Server) limited(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.limiter.Allow(RateLimitKey) {
			return nil, newMCPError(ErrorCodeRateLimited, "Too many requests", map[string]interface{}{
				"retry_after": fmt.Sprintf("%d seconds", int(s.limiter.Window().Seconds())),
			})
		}
		return next(ctx, request)
	}
}
