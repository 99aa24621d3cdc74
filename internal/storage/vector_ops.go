package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// DistanceFunction is the SQL scalar function computing cosine distance
// between two serialized vectors. It is registered on the driver at init.
const DistanceFunction = "vec_distance_cosine"

// searchVector ranks embedded documents by cosine distance to queryVector.
// Any failure is reported as ErrSearchExecution.
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}

	// Distance is computed inside the engine, ties broken by insertion order
	query := `
		SELECT id, title, content, ` + DistanceFunction + `(embedding, ?) AS distance
		FROM documents
		WHERE embedding IS NOT NULL
		ORDER BY distance ASC, id ASC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, serializeVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchExecution, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.DocumentID, &r.Title, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("%w: failed to scan result: %v", ErrSearchExecution, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchExecution, err)
	}

	return results, nil
}

// searchText performs BM25 full-text search over document content using FTS5.
// Every query term must match (stemmed); a query without terms matches nothing.
func searchText(ctx context.Context, db *sql.DB, query string, limit int) ([]TextResult, error) {
	match := buildMatchQuery(query)
	if match == "" || limit <= 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT d.id, d.title, d.content, bm25(documents_fts) AS score
		FROM documents_fts
		INNER JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY score, d.id
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, sqlQuery, match, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: FTS search: %v", ErrSearchExecution, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.DocumentID, &r.Title, &r.Content, &r.BM25Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildMatchQuery turns free text into an FTS5 query of quoted terms joined
// by implicit AND. Quoting every term neutralizes FTS5 operators and syntax
// characters in user input.
func buildMatchQuery(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " ")
}

// cosineDistanceBlob is the body of the registered SQL distance function
func cosineDistanceBlob(a, b []byte) (float64, error) {
	if len(a) != len(b) || len(a)%4 != 0 {
		return 0, fmt.Errorf("%s: vector size mismatch (%d vs %d bytes)", DistanceFunction, len(a), len(b))
	}
	return cosineDistance(deserializeVector(a), deserializeVector(b)), nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is 1 - cosine similarity, clamped to [0, 2]
func cosineDistance(a, b []float32) float64 {
	d := 1 - cosineSimilarity(a, b)
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// validateVector checks length and finiteness
func validateVector(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("got %d components, want %d", len(v), dim)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

// CosineDistance is an exported helper for testing
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, b)
}
