package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()

	ok, err := c.Has("h1")
	require.NoError(t, err)
	require.False(t, ok)

	got, err := c.Get("h1")
	require.NoError(t, err)
	require.Nil(t, got)

	entry := &CacheEntry{
		Hash:     "h1",
		TaskName: "carbon_map_c_above_bas",
		Targets:  []TargetDigest{{Path: "/w/c_above_bas.tif", Digest: "d1"}},
	}
	require.NoError(t, c.Put(entry))

	ok, err = c.Has("h1")
	require.NoError(t, err)
	require.True(t, ok)

	got, err = c.Get("h1")
	require.NoError(t, err)
	require.Equal(t, entry, got)

	entry.Targets[0].Digest = "d2"
	require.NoError(t, c.Put(entry))
	got, err = c.Get("h1")
	require.NoError(t, err)
	require.Equal(t, "d2", got.Targets[0].Digest)

	require.Error(t, c.Put(nil))
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache())
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Put(&CacheEntry{Hash: "h", Targets: []TargetDigest{{Path: "p", Digest: "d"}}}))

	got, err := c.Get("h")
	require.NoError(t, err)
	got.Targets[0].Digest = "mutated"

	again, err := c.Get("h")
	require.NoError(t, err)
	require.Equal(t, "d", again.Targets[0].Digest)
	require.Equal(t, 1, c.Len())
}

func TestSQLiteCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "taskgraph_cache")
	c, err := OpenSQLiteCache(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.Equal(t, filepath.Join(dir, CacheDBName), c.Path())
	exerciseCache(t, c)
}

func TestSQLiteCache_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenSQLiteCache(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(&CacheEntry{Hash: "h", TaskName: "n", Targets: []TargetDigest{}}))
	require.NoError(t, c.Close())

	reopened, err := OpenSQLiteCache(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("h")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "n", got.TaskName)
	require.Empty(t, got.Targets)
}
