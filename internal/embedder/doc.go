// Package embedder turns document and query text into fixed-length vectors.
//
// Two providers implement the Embedder interface: OpenAIProvider calls an
// OpenAI-compatible embeddings endpoint, and LocalProvider derives a
// deterministic pseudo-random vector from a SHA-256 digest of the text.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	    Dimension: 1536,
//	    Timeout:   30 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vector, err := emb.Embed(ctx, "Artificial intelligence and machine learning")
//
// # Provider Selection
//
//  1. If Config.Provider is set → use specified provider
//  2. Else if Config.APIKey is set → use OpenAI
//  3. Else → local deterministic provider (offline mode)
//
// # Failure Semantics
//
// Empty input fails with ErrEmptyText. Every remote failure, including
// transport errors, non-2xx responses, an empty data array, a vector of the
// wrong length or a non-finite component, is reported as ErrUpstream.
// Providers never retry; retry policy belongs to the caller.
//
// # Caching
//
// CachedEmbedder wraps any Embedder with an LRU cache keyed by the exact
// input text. Only successful results are stored:
//
//	cached := embedder.NewCachedEmbedder(emb, 1000)
//	v, err := cached.GetOrCompute(ctx, content)
//
// Cached vectors are copied on the way in and out, so callers may mutate
// what they receive.
package embedder
