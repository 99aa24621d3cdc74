package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dshills/docsearch/internal/audit"
	"github.com/dshills/docsearch/internal/auth"
	"github.com/dshills/docsearch/internal/backfill"
	"github.com/dshills/docsearch/internal/config"
	"github.com/dshills/docsearch/internal/dispatch"
	"github.com/dshills/docsearch/internal/documents"
	"github.com/dshills/docsearch/internal/embedder"
	"github.com/dshills/docsearch/internal/metrics"
	"github.com/dshills/docsearch/internal/ratelimit"
	"github.com/dshills/docsearch/internal/storage"
)

// app holds the components shared by serve and mcp
type app struct {
	cfg        *config.Config
	store      *storage.SQLiteStorage
	embedder   *embedder.CachedEmbedder
	metrics    *metrics.Metrics
	docs       *documents.Service
	reconciler *backfill.Reconciler
	queue      *dispatch.Queue
	limiter    *ratelimit.Limiter
	auth       *auth.APIKeyChecker
}

// newApp opens storage and builds every component from cfg. m may be nil.
func newApp(cfg *config.Config, m *metrics.Metrics) (*app, error) {
	if cfg.HMACKey == config.DefaultHMACKey {
		log.Printf("Warning: HMAC_KEY is the placeholder value; set a real secret in production")
	}
	if cfg.APIKey == "" {
		log.Printf("API_KEY not set: admin backfill is disabled")
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	base, err := embedder.New(embedderConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	cached := embedder.NewCachedEmbedder(m.InstrumentEmbedder(base), cfg.CacheSize)
	m.RegisterCache(cached)

	reconciler := backfill.New(store, cached.Uncached(),
		backfill.WithRateLimit(cfg.BackfillRate),
		backfill.WithMetrics(m),
	)

	queue := dispatch.New(cfg.DispatchWorkers, cfg.DispatchQueueSize)
	queue.Register(backfill.JobName, reconciler.Handler(cfg.BatchSize))

	limiter := ratelimit.New(cfg.RateLimit)

	m.RegisterGauge("dispatch_queue_pending", "Jobs waiting in the dispatch queue.", func() float64 {
		return float64(queue.Stats().Pending)
	})
	m.RegisterGauge("ratelimit_tracked_keys", "Clients with an active rate-limit window.", func() float64 {
		return float64(limiter.Len())
	})

	docs := documents.NewService(documents.Deps{
		Store:         store,
		Embedder:      cached,
		QueryEmbedder: cached.Uncached(),
		Audit:         audit.New(store, cfg.HMACKey),
		Scheduler:     queue,
		Metrics:       m,
	})

	log.Printf("Storage: %s (build %s, driver %s); embeddings: %s/%s dim=%d",
		cfg.DatabasePath, storage.BuildMode, storage.DriverName,
		base.Provider(), base.Model(), base.Dimension())

	return &app{
		cfg:        cfg,
		store:      store,
		embedder:   cached,
		metrics:    m,
		docs:       docs,
		reconciler: reconciler,
		queue:      queue,
		limiter:    limiter,
		auth:       auth.NewAPIKeyChecker(cfg.APIKey),
	}, nil
}

// Close releases the embedder and storage
func (a *app) Close() error {
	if err := a.embedder.Close(); err != nil {
		log.Printf("Warning: failed to close embedder: %v", err)
	}
	return a.store.Close()
}

func embedderConfig(cfg *config.Config) embedder.Config {
	return embedder.Config{
		Provider:  cfg.EmbeddingProvider,
		APIKey:    cfg.OpenAIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDim,
		Timeout:   cfg.EmbeddingTimeout,
	}
}
