package documents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch/internal/audit"
	"github.com/dshills/docsearch/internal/backfill"
	"github.com/dshills/docsearch/internal/dispatch"
	"github.com/dshills/docsearch/internal/embedder"
	"github.com/dshills/docsearch/internal/storage"
	"github.com/dshills/docsearch/pkg/types"
)

const testDim = 8

var vocabulary = map[string]int{
	"machine":  0,
	"learning": 1,
	"cooking":  2,
	"recipe":   3,
	"garden":   4,
	"plants":   5,
	"football": 6,
	"music":    7,
}

// keywordEmbedder maps known words onto fixed axes so similarity is predictable
type keywordEmbedder struct {
	fail bool
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if k.fail {
		return nil, fmt.Errorf("%w: provider down", embedder.ErrUpstream)
	}
	v := make([]float32, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if i, ok := vocabulary[strings.Trim(w, ".,")]; ok {
			v[i]++
		}
	}
	// Keep unrelated text off the zero vector
	v[testDim-1] += 0.01
	return v, nil
}

func (k *keywordEmbedder) Dimension() int   { return testDim }
func (k *keywordEmbedder) Provider() string { return "test" }
func (k *keywordEmbedder) Model() string    { return "keyword" }
func (k *keywordEmbedder) Close() error     { return nil }

type brokenVectorStore struct {
	*storage.SQLiteStorage
	textErr error
}

func (b *brokenVectorStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.VectorResult, error) {
	return nil, fmt.Errorf("%w: no such function: vec_distance_cosine", storage.ErrSearchExecution)
}

func (b *brokenVectorStore) SearchText(ctx context.Context, query string, limit int) ([]storage.TextResult, error) {
	if b.textErr != nil {
		return nil, b.textErr
	}
	return b.SQLiteStorage.SearchText(ctx, query, limit)
}

type failingAuditor struct{}

func (failingAuditor) Record(ctx context.Context, actorID, action string, metadata map[string]interface{}) error {
	return audit.ErrWriteFailed
}

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []dispatch.Job
	err  error
}

func (r *recordingScheduler) Schedule(job dispatch.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:", testDim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, emb embedder.Embedder, sched Scheduler) (*Service, *storage.SQLiteStorage) {
	t.Helper()
	base := setupStore(t)
	return NewService(Deps{
		Store:     base,
		Embedder:  emb,
		Audit:     audit.New(base, "test-secret"),
		Scheduler: sched,
	}), base
}

func seedCorpus(t *testing.T, svc *Service) map[string]int64 {
	t.Helper()
	docs := []struct{ title, content string }{
		{"AI Overview", "Machine learning is a branch of AI. Machine learning models learn from data."},
		{"Weeknight Cooking", "A quick cooking recipe for pasta."},
		{"Garden Notes", "Plants in the garden need water."},
		{"Match Report", "The football match ended in a draw."},
		{"Playlist", "Music for a long drive."},
	}
	ids := make(map[string]int64)
	for _, d := range docs {
		doc, err := svc.Create(context.Background(), d.title, d.content)
		require.NoError(t, err)
		ids[d.title] = doc.ID
	}
	return ids
}

func TestCreate_StoresEmbedding(t *testing.T) {
	svc, base := newTestService(t, &keywordEmbedder{}, nil)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "AI Overview", "machine learning basics")
	require.NoError(t, err)
	assert.Positive(t, doc.ID)
	assert.True(t, doc.HasEmbedding)
	assert.False(t, doc.CreatedAt.IsZero())

	row, err := base.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, row.Embedding, testDim)
}

func TestCreate_ReadAfterCreate(t *testing.T) {
	svc, _ := newTestService(t, &keywordEmbedder{}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Title", "Body text")
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "Body text", got.Content)
}

func TestCreate_EmbeddingFailureStillPersists(t *testing.T) {
	sched := &recordingScheduler{}
	svc, base := newTestService(t, &keywordEmbedder{fail: true}, sched)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "Pending", "content waiting for a vector")
	require.NoError(t, err)
	assert.False(t, doc.HasEmbedding)

	row, err := base.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, row.Embedding)

	require.Len(t, sched.jobs, 1)
	job := sched.jobs[0]
	assert.Equal(t, backfill.JobName, job.Name)
	assert.Equal(t, BackfillDelay, job.Delay)
	assert.Equal(t, 1, job.Args["limit"])
	assert.Equal(t, doc.ID-1, job.Args["after_id"])
}

func TestCreate_ScheduleFailureDoesNotFail(t *testing.T) {
	sched := &recordingScheduler{err: dispatch.ErrQueueFull}
	svc, _ := newTestService(t, &keywordEmbedder{fail: true}, sched)

	doc, err := svc.Create(context.Background(), "Pending", "content")
	require.NoError(t, err)
	assert.Positive(t, doc.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t, &keywordEmbedder{}, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"empty title", "", "content"},
		{"empty content", "title", ""},
		{"title too long", strings.Repeat("t", types.MaxTitleLength+1), "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.title, tt.content)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &keywordEmbedder{}, nil)
	_, err := svc.Get(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_VectorRanking(t *testing.T) {
	svc, _ := newTestService(t, &keywordEmbedder{}, nil)
	ids := seedCorpus(t, svc)

	resp, err := svc.Search(context.Background(), "machine learning", "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.SearchModeVector, resp.Mode)
	require.Len(t, resp.Results, TopK)

	assert.Equal(t, ids["AI Overview"], resp.Results[0].ID)
	for i, r := range resp.Results {
		require.NotNil(t, r.Score, "result %d", i)
		assert.NoError(t, r.Validate())
		if i > 0 {
			assert.LessOrEqual(t, *resp.Results[i-1].Score, *r.Score)
		}
	}
}

func TestSearch_LexicalFallback(t *testing.T) {
	base := setupStore(t)
	broken := &brokenVectorStore{SQLiteStorage: base}
	svc := NewService(Deps{
		Store:    broken,
		Embedder: &keywordEmbedder{},
		Audit:    audit.New(base, "test-secret"),
	})
	ids := seedCorpus(t, svc)

	resp, err := svc.Search(context.Background(), "machine learning", "")
	require.NoError(t, err)
	assert.Equal(t, types.SearchModeLexical, resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), TopK)
	assert.Equal(t, ids["AI Overview"], resp.Results[0].ID)
	for _, r := range resp.Results {
		assert.Nil(t, r.Score)
	}
}

func TestSearch_BothPathsFail(t *testing.T) {
	base := setupStore(t)
	broken := &brokenVectorStore{SQLiteStorage: base, textErr: errors.New("fts unavailable")}
	svc := NewService(Deps{
		Store:    broken,
		Embedder: &keywordEmbedder{},
		Audit:    audit.New(base, "test-secret"),
	})

	_, err := svc.Search(context.Background(), "machine learning", "")
	assert.ErrorIs(t, err, ErrSearchUnavailable)
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc, base := newTestService(t, &keywordEmbedder{}, nil)
	ctx := context.Background()

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.Search(ctx, q, "user-1")
		assert.ErrorIs(t, err, ErrValidation)
	}

	// Rejected queries are not audited
	logs, err := base.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSearch_EmbeddingUnavailable(t *testing.T) {
	svc, base := newTestService(t, &keywordEmbedder{fail: true}, nil)
	ctx := context.Background()

	_, err := svc.Search(ctx, "machine learning", "user-1")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	logs, err := base.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSearch_AuditFailureFailsSearch(t *testing.T) {
	base := setupStore(t)
	svc := NewService(Deps{
		Store:    base,
		Embedder: &keywordEmbedder{},
		Audit:    failingAuditor{},
	})

	_, err := svc.Search(context.Background(), "machine learning", "user-1")
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestSearch_RecordsAudit(t *testing.T) {
	svc, base := newTestService(t, &keywordEmbedder{}, nil)
	ctx := context.Background()

	_, err := svc.Search(ctx, "machine learning", "user-42")
	require.NoError(t, err)

	logs, err := base.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, audit.ActionSearchDocuments, entry.Action)
	assert.Equal(t, audit.HashActor("test-secret", "user-42"), entry.HashedActor)
	assert.NotContains(t, entry.HashedActor, "user-42")
	assert.JSONEq(t, `{"query_length": 16}`, entry.Metadata)
	assert.NotContains(t, entry.Metadata, "machine")
}

func TestSearch_AnonymousActor(t *testing.T) {
	svc, base := newTestService(t, &keywordEmbedder{}, nil)
	ctx := context.Background()

	_, err := svc.Search(ctx, "music", "")
	require.NoError(t, err)

	logs, err := base.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].HashedActor)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	svc, _ := newTestService(t, &keywordEmbedder{}, nil)

	resp, err := svc.Search(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Equal(t, types.SearchModeVector, resp.Mode)
	assert.Empty(t, resp.Results)
}

type countingQueryEmbedder struct {
	keywordEmbedder
	calls atomic.Int32
}

func (c *countingQueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.keywordEmbedder.Embed(ctx, text)
}

func TestSearch_UsesQueryEmbedder(t *testing.T) {
	base := setupStore(t)
	query := &countingQueryEmbedder{}
	svc := NewService(Deps{
		Store:         base,
		Embedder:      &keywordEmbedder{},
		QueryEmbedder: query,
		Audit:         audit.New(base, "test-secret"),
	})
	seedCorpus(t, svc)
	assert.Equal(t, int32(0), query.calls.Load())

	_, err := svc.Search(context.Background(), "machine learning", "")
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "machine learning", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), query.calls.Load())
}

type nonFiniteStore struct {
	*storage.SQLiteStorage
}

func (n *nonFiniteStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.VectorResult, error) {
	return []storage.VectorResult{
		{DocumentID: 1, Title: "a", Content: "first", Distance: math.NaN()},
		{DocumentID: 2, Title: "b", Content: "second", Distance: 0.2},
	}, nil
}

func TestSearch_DropsInvalidResults(t *testing.T) {
	base := setupStore(t)
	svc := NewService(Deps{
		Store:    &nonFiniteStore{SQLiteStorage: base},
		Embedder: &keywordEmbedder{},
		Audit:    audit.New(base, "test-secret"),
	})

	resp, err := svc.Search(context.Background(), "anything", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(2), resp.Results[0].ID)
}
