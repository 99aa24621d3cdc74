// Package config loads docsearch settings from an optional YAML file and
// the process environment. Environment variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the docsearch service
type Config struct {
	// Storage
	DatabasePath string `yaml:"database_path"`

	// Embedding settings
	EmbeddingProvider string        `yaml:"embedding_provider"` // openai, local, or empty for auto-detect
	OpenAIKey         string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	EmbeddingDim      int           `yaml:"embedding_dim"`
	EmbeddingTimeout  time.Duration `yaml:"embedding_timeout"`
	CacheSize         int           `yaml:"embedding_cache_size"`

	// Security
	HMACKey    string `yaml:"hmac_key"`
	APIKey     string `yaml:"api_key"`
	APIKeyName string `yaml:"api_key_name"`

	// HTTP surface
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      int      `yaml:"rate_limit"` // Admitted requests per client per minute

	// Backfill and dispatch
	BatchSize         int     `yaml:"embedding_batch_size"`
	BackfillRate      float64 `yaml:"backfill_rate"` // Embeddings per second, 0 disables throttling
	DispatchWorkers   int     `yaml:"dispatch_workers"`
	DispatchQueueSize int     `yaml:"dispatch_queue_size"`
}

// DefaultHMACKey is the placeholder secret used when HMAC_KEY is unset
const DefaultHMACKey = "replace_with_secure_key"

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		DatabasePath:      "docsearch.db",
		EmbeddingModel:    "text-embedding-3-small",
		EmbeddingDim:      1536,
		EmbeddingTimeout:  30 * time.Second,
		CacheSize:         1000,
		HMACKey:           DefaultHMACKey,
		APIKeyName:        "X-API-Key",
		ListenAddr:        ":8000",
		AllowedOrigins:    []string{"*"},
		RateLimit:         60,
		BatchSize:         10,
		DispatchWorkers:   2,
		DispatchQueueSize: 100,
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty and the file exists), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.EmbeddingProvider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider))
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDim = getEnvInt("EMBEDDING_DIM", c.EmbeddingDim)
	c.EmbeddingTimeout = getEnvDuration("EMBEDDING_TIMEOUT", c.EmbeddingTimeout)
	c.CacheSize = getEnvInt("EMBEDDING_CACHE_SIZE", c.CacheSize)
	c.HMACKey = getEnv("HMAC_KEY", c.HMACKey)
	c.APIKey = getEnv("API_KEY", c.APIKey)
	c.APIKeyName = getEnv("API_KEY_NAME", c.APIKeyName)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.RateLimit = getEnvInt("RATE_LIMIT", c.RateLimit)
	c.BatchSize = getEnvInt("EMBEDDING_BATCH_SIZE", c.BatchSize)
	c.BackfillRate = getEnvFloat("BACKFILL_RATE", c.BackfillRate)
	c.DispatchWorkers = getEnvInt("DISPATCH_WORKERS", c.DispatchWorkers)
	c.DispatchQueueSize = getEnvInt("DISPATCH_QUEUE_SIZE", c.DispatchQueueSize)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT must be positive, got %v", c.EmbeddingTimeout)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("EMBEDDING_CACHE_SIZE must be positive, got %d", c.CacheSize)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.BackfillRate < 0 {
		return fmt.Errorf("BACKFILL_RATE must not be negative, got %f", c.BackfillRate)
	}
	if c.DispatchWorkers <= 0 || c.DispatchQueueSize <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS and DISPATCH_QUEUE_SIZE must be positive")
	}
	switch c.EmbeddingProvider {
	case "", "openai", "local":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai or local, got %q", c.EmbeddingProvider)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
