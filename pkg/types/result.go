package types

import "math"

// SearchMode names the path that produced a result set
type SearchMode string

const (
	// SearchModeVector means results were ranked by embedding distance
	SearchModeVector SearchMode = "vector"
	// SearchModeLexical means the full-text fallback produced the results
	SearchModeLexical SearchMode = "lexical"
)

// SearchResult represents a single ranked document
type SearchResult struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Score   *float64 `json:"score,omitempty"` // Cosine distance, nil for lexical results
}

// SearchResponse is an ordered result set and the path that produced it
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Mode    SearchMode     `json:"mode"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ID <= 0 {
		return ErrInvalidDocumentID
	}

	if sr.Score != nil {
		s := *sr.Score
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return ErrInvalidScore
		}
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
