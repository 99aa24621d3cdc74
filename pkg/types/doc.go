// Package types provides shared type definitions for the docsearch service.
//
// The types here cross package boundaries: the document store produces them,
// the HTTP and MCP surfaces encode them, and tests assert against them.
//
// # Documents
//
// Document is the externally visible shape of a stored document. Embeddings
// are write-only from the caller's perspective and never appear on it:
//
//	doc := &types.Document{
//	    Title:   "AI Overview",
//	    Content: "Artificial intelligence and machine learning power modern search.",
//	}
//
// # Search Results
//
// SearchResult carries a cosine distance in Score when the result came from
// the vector path. Lexical fallback results leave Score nil, which encodes as
// an absent "score" field:
//
//	for _, r := range resp.Results {
//	    if r.Score != nil {
//	        fmt.Printf("%d %.4f %s\n", r.ID, *r.Score, r.Title)
//	    }
//	}
//
// Results from the vector path are ordered by ascending distance. Lexical
// results are ordered by the storage engine's match ranking and carry no
// ordering guarantee beyond "matches first".
package types
