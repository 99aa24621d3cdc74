package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch/internal/storage"
)

type failingRecorder struct{}

func (failingRecorder) InsertAuditLog(context.Context, *storage.AuditLog) error {
	return errors.New("disk full")
}

func TestHashActor(t *testing.T) {
	t.Run("matches HMAC-SHA256", func(t *testing.T) {
		mac := hmac.New(sha256.New, []byte("secret"))
		mac.Write([]byte("user-42"))
		want := hex.EncodeToString(mac.Sum(nil))

		assert.Equal(t, want, HashActor("secret", "user-42"))
		assert.Len(t, HashActor("secret", "user-42"), 64)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, HashActor("k", "alice"), HashActor("k", "alice"))
	})

	t.Run("key dependent", func(t *testing.T) {
		assert.NotEqual(t, HashActor("k1", "alice"), HashActor("k2", "alice"))
	})

	t.Run("absent actor", func(t *testing.T) {
		assert.Equal(t, "", HashActor("k", ""))
	})
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:", 4)
	require.NoError(t, err)
	defer store.Close()

	trail := New(store, "secret")

	require.NoError(t, trail.Record(ctx, "user-42", ActionSearchDocuments, map[string]interface{}{"query_length": 16}))
	require.NoError(t, trail.Record(ctx, "", ActionSearchDocuments, nil))

	entries, err := store.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	anon, named := entries[0], entries[1]
	assert.Equal(t, "", anon.HashedActor)
	assert.Equal(t, "{}", anon.Metadata)

	assert.Equal(t, HashActor("secret", "user-42"), named.HashedActor)
	assert.NotContains(t, named.HashedActor, "user-42")
	assert.Equal(t, ActionSearchDocuments, named.Action)
	assert.JSONEq(t, `{"query_length":16}`, named.Metadata)
}

func TestRecordErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty action", func(t *testing.T) {
		trail := New(failingRecorder{}, "k")
		assert.ErrorIs(t, trail.Record(ctx, "u", "", nil), ErrEmptyAction)
	})

	t.Run("write failure propagates", func(t *testing.T) {
		trail := New(failingRecorder{}, "k")
		err := trail.Record(ctx, "u", ActionSearchDocuments, nil)
		assert.ErrorIs(t, err, ErrWriteFailed)
		assert.Contains(t, err.Error(), "disk full")
	})
}
