// Package api serves the document and admin endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/dshills/docsearch/internal/auth"
	"github.com/dshills/docsearch/internal/backfill"
	"github.com/dshills/docsearch/internal/documents"
	"github.com/dshills/docsearch/internal/embedder"
	"github.com/dshills/docsearch/internal/metrics"
	"github.com/dshills/docsearch/internal/ratelimit"
)

const (
	// DefaultAPIKeyHeader carries the admin key
	DefaultAPIKeyHeader = "X-API-Key"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// HealthChecker reports storage readiness
type HealthChecker interface {
	Ping(ctx context.Context) error
	CheckVectorOperator(ctx context.Context) error
}

// Deps wires a Server. Metrics and Limiter are optional.
type Deps struct {
	Documents      *documents.Service
	Reconciler     *backfill.Reconciler
	Health         HealthChecker
	Embedder       embedder.Embedder
	Auth           *auth.APIKeyChecker
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	APIKeyHeader   string
	AllowedOrigins []string
	BatchSize      int
}

// Server is the HTTP surface
type Server struct {
	docs      *documents.Service
	reconcile *backfill.Reconciler
	health    HealthChecker
	embedder  embedder.Embedder
	auth      *auth.APIKeyChecker
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	keyHeader string
	origins   []string
	batchSize int

	handler http.Handler
}

// NewServer builds the route table and middleware chain
func NewServer(d Deps) *Server {
	s := &Server{
		docs:      d.Documents,
		reconcile: d.Reconciler,
		health:    d.Health,
		embedder:  d.Embedder,
		auth:      d.Auth,
		limiter:   d.Limiter,
		metrics:   d.Metrics,
		keyHeader: d.APIKeyHeader,
		origins:   d.AllowedOrigins,
		batchSize: d.BatchSize,
	}
	if s.keyHeader == "" {
		s.keyHeader = DefaultAPIKeyHeader
	}
	if s.batchSize <= 0 {
		s.batchSize = backfill.DefaultBatchSize
	}
	if s.auth == nil {
		s.auth = auth.NewAPIKeyChecker("")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", s.handleCreateDocument)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("POST /documents/search", s.handleSearch)
	mux.HandleFunc("POST /admin/fill-embeddings", s.handleFillEmbeddings)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.handleLive)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Outermost first
	s.handler = chain(mux,
		s.recoverPanics,
		s.logRequests,
		s.observe,
		s.cors,
		s.rateLimit,
	)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
