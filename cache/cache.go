// cache/cache.go
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gatewarden/gatewarden/metrics"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	KeyCount int    `json:"key_count"`
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	elem      *list.Element
}

// Cache is an in-memory key/value store with per-entry TTL and a hard key
// capacity. When the capacity is exceeded the oldest entry by insertion is
// evicted before the new one is stored. Get and Set never perform I/O and
// never fail.
//
// Values are returned by reference, not copied. Callers must treat them as
// read-only; mutating a returned value corrupts every other reader of the
// same key.
type Cache[V any] struct {
	name    string
	maxKeys int

	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List // of *entry[V], front = oldest insertion

	hits   atomic.Uint64
	misses atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache named for metrics purposes. A background janitor
// sweeps expired entries every sweepInterval; expired entries are also
// dropped lazily on read, so the sweep only bounds memory, not correctness.
func New[V any](name string, maxKeys int, sweepInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		name:    name,
		maxKeys: maxKeys,
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweep(sweepInterval)
	}
	return c
}

// Get returns the value for key. A present entry past its expiry behaves as
// absent and is removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && time.Now().Before(e.expiresAt) {
		v := e.value
		c.mu.Unlock()
		c.hits.Add(1)
		metrics.CacheHits.WithLabelValues(c.name).Inc()
		return v, true
	}
	if ok {
		c.removeLocked(e)
	}
	c.mu.Unlock()
	c.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(c.name).Inc()
	var zero V
	return zero, false
}

// Set stores value under key for ttl. An existing entry is overwritten and
// keeps its place in the insertion order.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	for c.maxKeys > 0 && len(c.entries) >= c.maxKeys {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry[V]))
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// Stats returns hit/miss counters and the current key count.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	count := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		KeyCount: count,
	}
}

// Close stops the janitor goroutine.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache[V]) removeLocked(e *entry[V]) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
}

func (c *Cache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for _, e := range c.entries {
				if !now.Before(e.expiresAt) {
					c.removeLocked(e)
				}
			}
			c.mu.Unlock()
		}
	}
}
