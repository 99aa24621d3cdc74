package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch/internal/config"
	"github.com/dshills/docsearch/internal/metrics"
	"github.com/dshills/docsearch/internal/storage"
)

const testDim = 8

// writeConfig points the CLI at a temp database with the local provider
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	t.Setenv("EMBEDDING_PROVIDER", "local")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("EMBEDDING_DIM", "")

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "docs.db")
	cfgPath = filepath.Join(dir, "docsearch.yaml")
	yaml := fmt.Sprintf("database_path: %s\nembedding_dim: %d\nembedding_batch_size: 2\n", dbPath, testDim)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "docsearch", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "mcp", "fill-embeddings", "embed", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestFillEmbeddingsCmd_Flags(t *testing.T) {
	cmd := NewFillEmbeddingsCmd()

	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "0", limit.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("batch-size"))
}

func TestVersionCmd_Output(t *testing.T) {
	original := versionInfo
	defer func() { versionInfo = original }()

	SetVersion("1.2.3", "2026-10-01")
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docsearch 1.2.3")
	assert.Contains(t, out, "Build Time: 2026-10-01")
	assert.Contains(t, out, "Build Mode: "+storage.BuildMode)
}

func TestFillEmbeddingsCmd(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	store, err := storage.NewSQLiteStorage(dbPath, testDim)
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateDocument(ctx, &storage.Document{Title: "t", Content: fmt.Sprintf("pending %d", i)}))
	}
	require.NoError(t, store.Close())

	out, err := run(t, "--config", cfgPath, "fill-embeddings", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 2 documents. 2 succeeded, 0 failed.")

	out, err = run(t, "--config", cfgPath, "fill-embeddings")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 documents. 1 succeeded, 0 failed.")

	store, err = storage.NewSQLiteStorage(dbPath, testDim)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.MissingEmbeddings)
}

func TestFillEmbeddingsCmd_NegativeLimit(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "fill-embeddings", "--limit=-1")
	assert.Error(t, err)
}

func TestEmbedCmd(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "embed", "hello", "world")
	require.NoError(t, err)
	assert.Contains(t, out, "Provider:  local")
	assert.Contains(t, out, fmt.Sprintf("Dimension: %d", testDim))
}

func TestEmbedCmd_RequiresText(t *testing.T) {
	_, err := run(t, "embed")
	assert.Error(t, err)
}

func TestNewApp_SearchQueriesBypassCache(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := newApp(cfg, metrics.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	_, err = a.docs.Create(ctx, "Go", "goroutines and channels")
	require.NoError(t, err)
	require.Equal(t, 1, a.embedder.Size())

	for i := 0; i < 3; i++ {
		_, err := a.docs.Search(ctx, fmt.Sprintf("query %d", i), "")
		require.NoError(t, err)
	}

	hits, misses := a.embedder.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 1, a.embedder.Size())
}
