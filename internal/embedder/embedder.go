package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrUpstream          = errors.New("embedding upstream failed")
	ErrUnsupportedModel  = errors.New("unsupported provider")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder turns text into a fixed-length vector
type Embedder interface {
	// Embed returns a vector of exactly Dimension() finite components
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of vectors keyed by exact input text
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Should never happen with positive size
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a copy of a cached vector.
// Returns a copy so caller mutations never reach the cached value.
func (c *Cache) Get(text string) ([]float32, bool) {
	v, ok := c.cache.Get(text)
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

// Set stores a copy of a vector with automatic LRU eviction
func (c *Cache) Set(text string, v []float32) {
	c.cache.Add(text, cloneVector(v))
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// CachedEmbedder memoizes another Embedder's successful results.
// Concurrent misses for the same text share a single upstream call.
// Failed computations are never cached.
type CachedEmbedder struct {
	Embedder
	cache  *Cache
	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedEmbedder wraps inner with an LRU cache holding at most size entries
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{
		Embedder: inner,
		cache:    NewCache(size),
	}
}

// GetOrCompute returns the cached vector for text, computing and caching it on a miss
func (c *CachedEmbedder) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	if v, ok := c.cache.Get(text); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	// The shared call outlives any single caller; the provider timeout bounds it
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(text, func() (interface{}, error) {
		v, err := c.Embedder.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(text, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneVector(res.Val.([]float32)), nil
	}
}

// Embed satisfies Embedder by delegating to GetOrCompute
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.GetOrCompute(ctx, text)
}

// Uncached returns the wrapped embedder for callers that must bypass the cache
func (c *CachedEmbedder) Uncached() Embedder {
	return c.Embedder
}

// Stats returns cumulative cache hits and misses
func (c *CachedEmbedder) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of cached vectors
func (c *CachedEmbedder) Size() int {
	return c.cache.Size()
}

// ValidateText checks an embedding input
func ValidateText(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	return nil
}

// CheckVector verifies a vector has the expected length and only finite components
func CheckVector(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("vector has %d components, want %d", len(v), dim)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
