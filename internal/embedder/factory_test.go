package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no key falls back to local", Config{}, ProviderLocal},
		{"key selects openai", Config{APIKey: "sk-test"}, ProviderOpenAI},
		{"explicit local wins over key", Config{Provider: "local", APIKey: "sk-test"}, ProviderLocal},
		{"explicit provider is case-insensitive", Config{Provider: "OpenAI", APIKey: "sk-test"}, ProviderOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		emb, err := New(Config{Dimension: 16})
		require.NoError(t, err)
		defer emb.Close()
		assert.Equal(t, ProviderLocal, emb.Provider())
		assert.Equal(t, 16, emb.Dimension())
	})

	t.Run("openai", func(t *testing.T) {
		emb, err := New(Config{APIKey: "sk-test", Model: "text-embedding-3-large", Dimension: 3072})
		require.NoError(t, err)
		defer emb.Close()
		assert.Equal(t, ProviderOpenAI, emb.Provider())
		assert.Equal(t, "text-embedding-3-large", emb.Model())
		assert.Equal(t, 3072, emb.Dimension())
	})

	t.Run("explicit openai without key", func(t *testing.T) {
		_, err := New(Config{Provider: "openai"})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "jina"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}
