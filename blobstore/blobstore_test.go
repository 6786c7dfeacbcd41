package blobstore

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("open missing", func(t *testing.T) {
		_, err := store.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and open", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "snapshots/a", strings.NewReader("payload-a")))

		r, err := store.Open(ctx, "snapshots/a")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "payload-a", string(data))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "snapshots/a", strings.NewReader("payload-a2")))

		r, err := store.Open(ctx, "snapshots/a")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "payload-a2", string(data))
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "snapshots/b", strings.NewReader("payload-b")))
		require.NoError(t, store.Put(ctx, "other/c", strings.NewReader("payload-c")))

		names, err := store.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snapshots/a", "snapshots/b"}, names)

		names, err = store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"other/c", "snapshots/a", "snapshots/b"}, names)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "snapshots/a"))

		_, err := store.Open(ctx, "snapshots/a")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, "snapshots/a"))
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestMemoryStore_OpenIsolatedFromPut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", strings.NewReader("before")))

	r, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, store.Put(ctx, "a", strings.NewReader("after")))

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))
}

func TestLocalStore_ListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a", strings.NewReader("payload")))

	// A leftover temp file from an interrupted Put must not show up.
	f, err := os.CreateTemp(dir, ".blob-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}
