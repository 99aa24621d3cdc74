// Package documents owns document creation and hybrid retrieval.
//
// Create embeds content through the shared cache and stores the document
// with or without its vector; a missing vector is repaired later by
// backfill. Search embeds the query, records an audit entry, ranks by
// vector distance and falls back to full-text matching when the vector
// query cannot execute.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/docsearch/internal/audit"
	"github.com/dshills/docsearch/internal/backfill"
	"github.com/dshills/docsearch/internal/dispatch"
	"github.com/dshills/docsearch/internal/embedder"
	"github.com/dshills/docsearch/internal/metrics"
	"github.com/dshills/docsearch/internal/storage"
	"github.com/dshills/docsearch/pkg/types"
)

// TopK is the fixed number of results a search returns
const TopK = 3

// BackfillDelay is how long a create-time backfill job waits before starting
const BackfillDelay = time.Second

var (
	// ErrValidation is returned for malformed caller input
	ErrValidation = errors.New("validation failed")
	// ErrEmbeddingUnavailable is returned when a query cannot be embedded
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrPersistence is returned when a document or audit row cannot be written
	ErrPersistence = errors.New("persistence failed")
	// ErrSearchUnavailable is returned when both vector and lexical search fail
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
)

// Store is the storage surface the service needs
type Store interface {
	CreateDocument(ctx context.Context, doc *storage.Document) error
	GetDocument(ctx context.Context, id int64) (*storage.Document, error)
	SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.VectorResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]storage.TextResult, error)
}

// Auditor records user actions
type Auditor interface {
	Record(ctx context.Context, actorID, action string, metadata map[string]interface{}) error
}

// Scheduler queues background work without blocking
type Scheduler interface {
	Schedule(job dispatch.Job) error
}

// Deps wires a Service
type Deps struct {
	Store Store
	// Embedder embeds document content at create time, typically a CachedEmbedder
	Embedder embedder.Embedder
	// QueryEmbedder embeds search queries without caching them; defaults to Embedder
	QueryEmbedder embedder.Embedder
	Audit         Auditor
	Scheduler     Scheduler        // Optional
	Metrics       *metrics.Metrics // Optional
}

// Service implements document creation and search
type Service struct {
	store         Store
	embedder      embedder.Embedder
	queryEmbedder embedder.Embedder
	audit         Auditor
	scheduler     Scheduler
	metrics       *metrics.Metrics
}

// NewService creates a Service from deps
func NewService(d Deps) *Service {
	q := d.QueryEmbedder
	if q == nil {
		q = d.Embedder
	}
	return &Service{
		store:         d.Store,
		embedder:      d.Embedder,
		queryEmbedder: q,
		audit:         d.Audit,
		scheduler:     d.Scheduler,
		metrics:       d.Metrics,
	}
}

// Create validates and stores a document. An embedding failure does not
// fail the call: the document is stored without a vector and a backfill
// job is requested on a best-effort basis.
func (s *Service) Create(ctx context.Context, title, content string) (*types.Document, error) {
	if err := types.ValidateInput(title, content); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	row := &storage.Document{Title: title, Content: content}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		log.Printf("documents: embedding failed, storing without vector: %v", err)
	} else {
		row.Embedding = vector
	}

	if err := s.store.CreateDocument(ctx, row); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	embedded := row.Embedding != nil
	if !embedded {
		s.scheduleBackfill(row.ID)
	}
	s.metrics.DocumentCreated(embedded)

	return &types.Document{
		ID:           row.ID,
		Title:        row.Title,
		Content:      row.Content,
		CreatedAt:    row.CreatedAt,
		HasEmbedding: embedded,
	}, nil
}

// Get returns a stored document
func (s *Service) Get(ctx context.Context, id int64) (*types.Document, error) {
	row, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %d: %w", id, err)
	}
	return &types.Document{
		ID:           row.ID,
		Title:        row.Title,
		Content:      row.Content,
		CreatedAt:    row.CreatedAt,
		HasEmbedding: row.Embedding != nil,
	}, nil
}

// Search returns up to TopK documents for query. Vector results carry their
// cosine distance as Score, ascending; lexical fallback results carry none.
func (s *Service) Search(ctx context.Context, query, actorID string) (*types.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}

	queryVector, err := s.queryEmbedder.Embed(ctx, query)
	if err != nil {
		s.metrics.ObserveSearch("error")
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	// Only the length of the query is persisted
	meta := map[string]interface{}{"query_length": utf8.RuneCountInString(query)}
	if err := s.audit.Record(ctx, actorID, audit.ActionSearchDocuments, meta); err != nil {
		s.metrics.ObserveSearch("error")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	vectorResults, err := s.store.SearchVector(ctx, queryVector, TopK)
	if err == nil {
		s.metrics.ObserveSearch(string(types.SearchModeVector))
		return &types.SearchResponse{
			Results: fromVectorResults(vectorResults),
			Mode:    types.SearchModeVector,
		}, nil
	}

	log.Printf("documents: vector search failed, falling back to lexical: %v", err)

	textResults, err := s.store.SearchText(ctx, query, TopK)
	if err != nil {
		s.metrics.ObserveSearch("error")
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	s.metrics.ObserveSearch(string(types.SearchModeLexical))
	return &types.SearchResponse{
		Results: fromTextResults(textResults),
		Mode:    types.SearchModeLexical,
	}, nil
}

func (s *Service) scheduleBackfill(id int64) {
	if s.scheduler == nil {
		return
	}
	err := s.scheduler.Schedule(dispatch.Job{
		Name: backfill.JobName,
		// after_id targets this document first
		Args:  map[string]interface{}{"limit": 1, "after_id": id - 1},
		Delay: BackfillDelay,
	})
	if err != nil {
		s.metrics.DispatchFailed()
		log.Printf("documents: failed to schedule backfill for document %d: %v", id, err)
	}
}

func fromVectorResults(in []storage.VectorResult) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(in))
	for _, r := range in {
		score := r.Distance
		out = appendValid(out, types.SearchResult{
			ID:      r.DocumentID,
			Title:   r.Title,
			Content: r.Content,
			Score:   &score,
		})
	}
	return out
}

func fromTextResults(in []storage.TextResult) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(in))
	for _, r := range in {
		out = appendValid(out, types.SearchResult{
			ID:      r.DocumentID,
			Title:   r.Title,
			Content: r.Content,
		})
	}
	return out
}

// appendValid drops rows that cannot be returned, such as a non-finite distance
func appendValid(out []types.SearchResult, r types.SearchResult) []types.SearchResult {
	if err := r.Validate(); err != nil {
		log.Printf("documents: dropping result for document %d: %v", r.ID, err)
		return out
	}
	return append(out, r)
}
