package embedder

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // openai, local, or empty to auto-detect
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// New creates the provider selected by cfg.
// Priority:
// 1. cfg.Provider when set
// 2. openai when an API key is present
// 3. local otherwise
func New(cfg Config) (Embedder, error) {
	switch DetectProvider(cfg) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimension, cfg.Timeout)
	case ProviderLocal:
		log.Printf("Embedding provider: local deterministic vectors (dimension %d); not suitable for production relevance", dimensionOrDefault(cfg.Dimension))
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would build for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

func dimensionOrDefault(d int) int {
	if d <= 0 {
		return DefaultDimension
	}
	return d
}
