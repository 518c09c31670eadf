package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGet(t *testing.T) {
	c := New[string]("test-get", 10, 0)
	defer c.Close()

	c.Set("a", "value-a", time.Minute)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "value-a", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheTTLRespected(t *testing.T) {
	c := New[int]("test-ttl", 10, 0)
	defer c.Close()

	c.Set("k", 42, 40*time.Millisecond)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry must behave as absent after its TTL")
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	c := New[int]("test-evict", 3, 0)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)
	c.Set("d", 4, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest insertion must be evicted first")
	for _, key := range []string{"b", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 3, c.Stats().KeyCount)
}

func TestCacheOverwriteDoesNotGrow(t *testing.T) {
	c := New[int]("test-overwrite", 2, 0)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Set("a", 2, time.Minute)
	c.Set("b", 3, time.Minute)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, c.Stats().KeyCount)
}

func TestCacheDelete(t *testing.T) {
	c := New[int]("test-delete", 10, 0)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheStats(t *testing.T) {
	c := New[int]("test-stats", 10, 0)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("nope")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.KeyCount)
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	c := New[int]("test-sweep", 10, 20*time.Millisecond)
	defer c.Close()

	c.Set("a", 1, 10*time.Millisecond)
	c.Set("b", 2, time.Minute)

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, c.Stats().KeyCount, "janitor should have removed the expired entry")
}
