package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "wdsync:v1:ttl-Q42-123", RevisionKey("ttl", "Q42", 123))
	assert.Equal(t, "wdsync:v1:compare-1-2", CompareKey(1, 2))
	assert.True(t, strings.HasPrefix(CacheKey("SELECT ?c1"), "wdsync:v1:"))
	assert.Equal(t, CacheKey("x"), CacheKey("x"))
	assert.NotEqual(t, CacheKey("x"), CacheKey("y"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := RevisionKey("ttl", "Q42", 7)

	require.NoError(t, c.Set(key, []byte("@prefix wd: <x> ."), 0))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "@prefix wd: <x> .", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
	assert.NotContains(t, entries[0].Name(), ":")

	require.NoError(t, c.Set(key, []byte("old"), -time.Second))
	_, ok = c.Get(key)
	assert.False(t, ok, "expired entries are not returned")
	_, err = os.Stat(filepath.Join(dir, entries[0].Name()))
	assert.True(t, os.IsNotExist(err), "expired entries are removed")

	assert.NoError(t, c.Delete(key), "deleting a missing key is not an error")
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	require.NoError(t, os.WriteFile(c.path("k"), []byte("{not json"), 0644))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	require.NoError(t, disk.Set("k", []byte("v"), 0))

	c := &LayeredCache{memory: NewMemoryCache(time.Minute, time.Minute), disk: disk}
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	got, ok = c.memory.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Clear())
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDisabled(t *testing.T) {
	var c Cache = Disabled{}
	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, ok := c.Get("k")
	assert.False(t, ok)
}
