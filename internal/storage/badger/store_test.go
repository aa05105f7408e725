package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CacheGetSetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	_, ok := store.Get("missing")
	require.False(t, ok)

	store.Set("sitemap:https://example.com", []byte(`{"pages":[]}`))
	value, ok := store.Get("sitemap:https://example.com")
	require.True(t, ok)
	require.Equal(t, `{"pages":[]}`, string(value))
}

func TestKVStorage_UpsertPreservesCreatedAt(t *testing.T) {
	store := openTestStore(t)
	kv := NewKVStorage(store)
	ctx := context.Background()

	created, err := kv.Upsert(ctx, "gemini_api_key", "first-value", "gemini key")
	require.NoError(t, err)
	require.True(t, created)

	first, err := kv.GetPair(ctx, "gemini_api_key")
	require.NoError(t, err)

	created, err = kv.Upsert(ctx, "gemini_api_key", "second-value", "gemini key")
	require.NoError(t, err)
	require.False(t, created)

	second, err := kv.GetPair(ctx, "gemini_api_key")
	require.NoError(t, err)
	require.Equal(t, "second-value", second.Value)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestKVStorage_GetMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	store := openTestStore(t)
	kv := NewKVStorage(store)

	_, err := kv.GetPair(context.Background(), "nonexistent")
	require.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorage_ListByPrefix(t *testing.T) {
	store := openTestStore(t)
	kv := NewKVStorage(store)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "company:acme:name", "Acme", ""))
	require.NoError(t, kv.Set(ctx, "company:acme:url", "https://acme.example", ""))
	require.NoError(t, kv.Set(ctx, "gemini_api_key", "key", ""))

	matches, err := kv.ListByPrefix(ctx, "company:acme:")
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestKVStorage_DeleteAll(t *testing.T) {
	store := openTestStore(t)
	kv := NewKVStorage(store)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", "1", ""))
	require.NoError(t, kv.Set(ctx, "b", "2", ""))

	require.NoError(t, kv.DeleteAll(ctx))

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
