package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeVector(t *testing.T) {
	v := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := SerializeVector(v)
	assert.Len(t, blob, 16)
	assert.Equal(t, v, DeserializeVector(blob))
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosineDistanceBlob(t *testing.T) {
	d, err := cosineDistanceBlob(serializeVector([]float32{1, 0}), serializeVector([]float32{0, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-9)

	_, err = cosineDistanceBlob(serializeVector([]float32{1, 0}), serializeVector([]float32{1, 0, 0}))
	assert.Error(t, err)
}

func TestBuildMatchQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"machine learning", `"machine" "learning"`},
		{"  spaced   out  ", `"spaced" "out"`},
		{`AND OR NOT "quoted"`, `"AND" "OR" "NOT" "quoted"`},
		{"wild* (group) col:umn", `"wild" "group" "col" "umn"`},
		{"!!!", ""},
		{"", ""},
		{"café 2024", `"café" "2024"`},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, buildMatchQuery(tt.query))
		})
	}
}

func TestSearchVector(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	near := &Document{Title: "near", Content: "near", Embedding: []float32{1, 0, 0, 0}}
	mid := &Document{Title: "mid", Content: "mid", Embedding: []float32{1, 1, 0, 0}}
	far := &Document{Title: "far", Content: "far", Embedding: []float32{0, 0, 1, 0}}
	farther := &Document{Title: "farther", Content: "farther", Embedding: []float32{-1, 0, 0, 0}}
	missing := &Document{Title: "missing", Content: "no vector"}
	for _, d := range []*Document{far, missing, mid, farther, near} {
		require.NoError(t, storage.CreateDocument(ctx, d))
	}

	t.Run("top-k ascending distance", func(t *testing.T) {
		results, err := storage.SearchVector(ctx, []float32{1, 0, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, near.ID, results[0].DocumentID)
		assert.Equal(t, mid.ID, results[1].DocumentID)
		assert.Equal(t, far.ID, results[2].DocumentID)
		assert.Equal(t, "near", results[0].Title)

		assert.InDelta(t, 0, results[0].Distance, 1e-6)
		assert.InDelta(t, 1-1/math.Sqrt2, results[1].Distance, 1e-6)
		assert.InDelta(t, 1, results[2].Distance, 1e-6)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		}
	})

	t.Run("documents without embeddings are skipped", func(t *testing.T) {
		results, err := storage.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 4)
		for _, r := range results {
			assert.NotEqual(t, missing.ID, r.DocumentID)
		}
	})

	t.Run("zero limit", func(t *testing.T) {
		results, err := storage.SearchVector(ctx, []float32{1, 0, 0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("dimension mismatch fails execution", func(t *testing.T) {
		_, err := storage.SearchVector(ctx, []float32{1, 0}, 3)
		assert.ErrorIs(t, err, ErrSearchExecution)
	})
}

func TestSearchVectorEmptyStore(t *testing.T) {
	storage := setupTestDB(t)
	results, err := storage.SearchVector(context.Background(), []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVectorClosedDB(t *testing.T) {
	storage := setupTestDB(t)
	require.NoError(t, storage.Close())
	_, err := storage.SearchVector(context.Background(), []float32{1, 0, 0, 0}, 3)
	assert.ErrorIs(t, err, ErrSearchExecution)
}

func TestSearchText(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ai := &Document{Title: "AI Overview", Content: "Artificial intelligence and machine learning power modern search."}
	cooking := &Document{Title: "Cooking", Content: "Slow cooking brings out flavor."}
	ml := &Document{Title: "ML", Content: "A machine learns from data."}
	for _, d := range []*Document{ai, cooking, ml} {
		require.NoError(t, storage.CreateDocument(ctx, d))
	}

	t.Run("all terms must match", func(t *testing.T) {
		results, err := storage.SearchText(ctx, "machine learning", 3)
		require.NoError(t, err)

		ids := make([]int64, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.DocumentID)
		}
		assert.Contains(t, ids, ai.ID)
		assert.NotContains(t, ids, cooking.ID)
	})

	t.Run("stemmed match", func(t *testing.T) {
		// "learning" and "learns" share the porter stem "learn"
		results, err := storage.SearchText(ctx, "learning", 3)
		require.NoError(t, err)
		ids := make([]int64, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.DocumentID)
		}
		assert.ElementsMatch(t, []int64{ai.ID, ml.ID}, ids)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := storage.SearchText(ctx, "learning", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("no match", func(t *testing.T) {
		results, err := storage.SearchText(ctx, "quantum", 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("operators are literal", func(t *testing.T) {
		results, err := storage.SearchText(ctx, `machine OR "cooking`, 3)
		require.NoError(t, err)
		assert.Empty(t, results, "OR must be treated as a required term, not an operator")
	})

	t.Run("no terms", func(t *testing.T) {
		results, err := storage.SearchText(ctx, "?!", 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
