// cache/guard.go
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Guard deduplicates concurrent recomputation of the same key.
//
// The blocking form (Do) collapses N concurrent callers onto one execution
// of fn and hands the result to all of them; it is the variant for
// authorization-critical lookups, where two concurrent requests must never
// compute divergent state independently.
//
// The no-wait form (DoNoWait) never blocks a caller behind someone else's
// computation: the first caller runs fn, concurrent callers are told the key
// is busy and fall back to whatever stale or neutral value they hold. Use it
// only for eventually-consistent, low-stakes lookups such as the audit
// retention gate.
//
// Either way a failed fn is not cached: the key leaves the in-flight set on
// completion and the next caller retries.
type Guard struct {
	sf singleflight.Group

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// Do runs fn under key, collapsing concurrent callers onto a single
// execution. All callers receive the one result, including its error.
func (g *Guard) Do(key string, fn func() (interface{}, error)) (interface{}, error) {
	v, err, _ := g.sf.Do(key, fn)
	return v, err
}

// DoNoWait runs fn under key unless a computation for key is already in
// flight, in which case it returns immediately with ran=false and the caller
// uses its own fallback.
func (g *Guard) DoNoWait(key string, fn func() (interface{}, error)) (v interface{}, err error, ran bool) {
	g.mu.Lock()
	if _, busy := g.inflight[key]; busy {
		g.mu.Unlock()
		return nil, nil, false
	}
	g.inflight[key] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}()

	v, err = fn()
	return v, err, true
}

// Loader pairs a Cache with a Guard into the read path every resolver lookup
// uses: consult the cache, and on a miss compute once and fill.
type Loader[V any] struct {
	cache *Cache[V]
	guard *Guard
	ttl   time.Duration
}

func NewLoader[V any](c *Cache[V], ttl time.Duration) *Loader[V] {
	return &Loader[V]{cache: c, guard: NewGuard(), ttl: ttl}
}

// Load returns the cached value for key, or computes it with fetch. Misses
// for the same key are collapsed: exactly one fetch runs, every caller waits
// for and shares its result. A fetch error is returned to all waiting
// callers and nothing is cached.
func (l *Loader[V]) Load(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	v, err := l.guard.Do(key, func() (interface{}, error) {
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, fetched, l.ttl)
		return fetched, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// LoadNoWait behaves like Load except that callers arriving while a fetch
// for key is already running receive fallback immediately instead of
// waiting. The in-flight fetch still populates the cache for later callers.
func (l *Loader[V]) LoadNoWait(ctx context.Context, key string, fallback V, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	v, err, ran := l.guard.DoNoWait(key, func() (interface{}, error) {
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, fetched, l.ttl)
		return fetched, nil
	})
	if !ran {
		return fallback, nil
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Stats exposes the underlying cache counters.
func (l *Loader[V]) Stats() Stats {
	return l.cache.Stats()
}
