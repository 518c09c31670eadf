package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadCollapsesConcurrentMisses(t *testing.T) {
	c := New[string]("test-collapse", 10, 0)
	defer c.Close()
	loader := NewLoader(c, time.Minute)

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		time.Sleep(30 * time.Millisecond)
		return "computed", nil
	}

	const callers = 25
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := loader.Load(context.Background(), "cold", fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load(), "concurrent misses for one key must trigger exactly one fetch")
	for _, v := range results {
		assert.Equal(t, "computed", v)
	}
}

func TestLoadServesFromCache(t *testing.T) {
	c := New[string]("test-cached", 10, 0)
	defer c.Close()
	loader := NewLoader(c, time.Minute)

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "v", nil
	}

	for i := 0; i < 5; i++ {
		v, err := loader.Load(context.Background(), "k", fetch)
		assert.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.Equal(t, int32(1), fetches.Load())
}

func TestLoadErrorIsNotCached(t *testing.T) {
	c := New[string]("test-error", 10, 0)
	defer c.Close()
	loader := NewLoader(c, time.Minute)

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		if fetches.Add(1) == 1 {
			return "", errors.New("storage down")
		}
		return "recovered", nil
	}

	_, err := loader.Load(context.Background(), "k", fetch)
	assert.Error(t, err)

	v, err := loader.Load(context.Background(), "k", fetch)
	assert.NoError(t, err, "a failed computation must not be poison-cached")
	assert.Equal(t, "recovered", v)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestLoadNoWaitReturnsFallbackDuringInFlight(t *testing.T) {
	c := New[string]("test-nowait", 10, 0)
	defer c.Close()
	loader := NewLoader(c, time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "fresh", nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := loader.LoadNoWait(context.Background(), "k", "fallback", fetch)
		assert.NoError(t, err)
		assert.Equal(t, "fresh", v, "the caller that runs the fetch gets its result")
	}()

	<-started
	v, err := loader.LoadNoWait(context.Background(), "k", "fallback", func(ctx context.Context) (string, error) {
		t.Fatal("second caller must not fetch while one is in flight")
		return "", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "fallback", v, "concurrent caller must not block and must get the fallback")

	close(release)
	wg.Wait()

	v, err = loader.LoadNoWait(context.Background(), "k", "fallback", func(ctx context.Context) (string, error) {
		t.Fatal("value should be cached now")
		return "", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "fresh", v, "the in-flight result must be cached for later callers")
}

func TestGuardClearsInFlightAfterError(t *testing.T) {
	g := NewGuard()

	_, err, ran := g.DoNoWait("k", func() (interface{}, error) {
		return nil, errors.New("boom")
	})
	assert.True(t, ran)
	assert.Error(t, err)

	v, err, ran := g.DoNoWait("k", func() (interface{}, error) {
		return "ok", nil
	})
	assert.True(t, ran, "key must leave the in-flight set after a failed computation")
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
}
