// Package backfill repairs documents stored without an embedding.
//
// A pass repeatedly selects the next batch of documents whose embedding is
// absent, embeds each one and stores the vector. A document whose embedding
// fails is recorded and skipped; it never aborts the batch. Selection walks
// forward by id, so a pass visits each document at most once, always
// terminates, and is safe to run while new documents are being created.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/docsearch/internal/dispatch"
	"github.com/dshills/docsearch/internal/embedder"
	"github.com/dshills/docsearch/internal/metrics"
	"github.com/dshills/docsearch/internal/storage"
)

// JobName is the dispatch job that runs a backfill pass
const JobName = "precompute_embeddings"

// DefaultBatchSize is used when a caller passes a non-positive batch size
const DefaultBatchSize = 10

// ErrPassRunning is returned by TryReconcile when another pass holds the lock
var ErrPassRunning = errors.New("backfill pass already running")

// Store is the storage surface backfill needs
type Store interface {
	ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]*storage.Document, error)
	SetEmbedding(ctx context.Context, id int64, vector []float32) error
}

// Result summarizes one pass
type Result struct {
	SuccessCount int
	FailedIDs    []int64
	Duration     time.Duration
}

// Processed returns the number of documents the pass attempted
func (r *Result) Processed() int {
	return r.SuccessCount + len(r.FailedIDs)
}

// Message renders the operator-facing summary
func (r *Result) Message() string {
	msg := fmt.Sprintf("Processed %d documents. %d succeeded, %d failed.",
		r.Processed(), r.SuccessCount, len(r.FailedIDs))
	if len(r.FailedIDs) > 0 {
		ids := make([]string, len(r.FailedIDs))
		for i, id := range r.FailedIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		msg += " Failed IDs: [" + strings.Join(ids, ", ") + "]"
	}
	return msg
}

// Reconciler runs backfill passes
type Reconciler struct {
	store    Store
	embedder embedder.Embedder
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	lock     RunLock
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithRateLimit caps embedding calls per second; zero or less disables throttling
func WithRateLimit(perSecond float64) Option {
	return func(r *Reconciler) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMetrics reports per-document outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New creates a Reconciler. emb should not be cached: backfill content is
// rarely repeated.
func New(store Store, emb embedder.Embedder, opts ...Option) *Reconciler {
	r := &Reconciler{store: store, embedder: emb}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs one pass over all documents. limit <= 0 means no limit.
func (r *Reconciler) Reconcile(ctx context.Context, batchSize, limit int) (*Result, error) {
	return r.ReconcileFrom(ctx, 0, batchSize, limit)
}

// ReconcileFrom runs one pass over documents with id greater than afterID.
// On error the partial result so far is returned alongside it.
func (r *Reconciler) ReconcileFrom(ctx context.Context, afterID int64, batchSize, limit int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	start := time.Now()
	result := &Result{FailedIDs: []int64{}}
	defer func() { result.Duration = time.Since(start) }()

	lastID := afterID
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n := batchSize
		if limit > 0 {
			remaining := limit - result.Processed()
			if remaining <= 0 {
				break
			}
			n = min(n, remaining)
		}

		docs, err := r.store.ListMissingEmbeddings(ctx, lastID, n)
		if err != nil {
			return result, fmt.Errorf("failed to select documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			lastID = doc.ID
			if err := r.processDocument(ctx, doc); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				log.Printf("backfill: document %d failed: %v", doc.ID, err)
				result.FailedIDs = append(result.FailedIDs, doc.ID)
				r.metrics.ObserveBackfill(false)
				continue
			}
			result.SuccessCount++
			r.metrics.ObserveBackfill(true)
		}
	}

	return result, nil
}

// TryReconcile runs a pass unless one is already in progress, in which case
// it returns ErrPassRunning without doing any work
func (r *Reconciler) TryReconcile(ctx context.Context, afterID int64, batchSize, limit int) (*Result, error) {
	if !r.lock.TryAcquire() {
		return nil, ErrPassRunning
	}
	defer r.lock.Release()
	return r.ReconcileFrom(ctx, afterID, batchSize, limit)
}

// Handler adapts TryReconcile to a dispatch job. Recognized args: limit,
// after_id, batch_size. A skipped pass is not an error.
func (r *Reconciler) Handler(defaultBatchSize int) dispatch.Handler {
	return func(ctx context.Context, args map[string]interface{}) error {
		limit := dispatch.IntArg(args, "limit", 0)
		afterID := int64(dispatch.IntArg(args, "after_id", 0))
		batchSize := dispatch.IntArg(args, "batch_size", defaultBatchSize)

		result, err := r.TryReconcile(ctx, afterID, batchSize, limit)
		if errors.Is(err, ErrPassRunning) {
			log.Printf("backfill: pass already running, skipping dispatched job")
			return nil
		}
		if err != nil {
			return err
		}
		log.Printf("backfill: %s", result.Message())
		return nil
	}
}

func (r *Reconciler) processDocument(ctx context.Context, doc *storage.Document) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	vector, err := r.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return err
	}
	return r.store.SetEmbedding(ctx, doc.ID, vector)
}
