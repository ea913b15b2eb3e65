package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietCache(opts ...Option) *Cache {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewCache(opts...)
}

func constFetch(v any) FetchFunc {
	return func(context.Context) (any, error) { return v, nil }
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "swarm-status", NewKey("swarm-status", "").String())
	assert.Equal(t, "findings?wing=GEO", NewKey("findings", "wing=GEO").String())
}

func TestFetchReplacesValue(t *testing.T) {
	c := quietCache()
	key := NewKey("findings", "")

	_, err := c.Fetch(context.Background(), key, constFetch([]string{"a", "b"}))
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), key, constFetch([]string{"c"}))
	require.NoError(t, err)

	v, e, ok := Value[[]string](c, key)
	require.True(t, ok)
	assert.Equal(t, []string{"c"}, v, "latest result replaces, never accumulates")
	assert.False(t, e.Stale)
	assert.NoError(t, e.Err)
}

func TestFailedFetchKeepsLastValue(t *testing.T) {
	c := quietCache()
	key := NewKey("swarm-status", "")
	boom := errors.New("connection refused")

	_, err := c.Fetch(context.Background(), key, constFetch(7))
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), key, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	v, e, ok := Value[int](c, key)
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.ErrorIs(t, e.Err, boom)
	assert.False(t, e.ErrorAt.IsZero())
	assert.True(t, e.HasValue())
}

func TestFailureBeforeAnySuccessHasNoValue(t *testing.T) {
	c := quietCache()
	key := NewKey("swarm-status", "")

	_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
		return nil, errors.New("down")
	})
	require.Error(t, err)

	_, e, ok := Value[int](c, key)
	assert.False(t, ok)
	assert.Error(t, e.Err)
	assert.False(t, e.HasValue())
}

func TestConcurrentFetchesAreCoalesced(t *testing.T) {
	c := quietCache()
	key := NewKey("findings", "")

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "feed", nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), key, fn)
			assert.NoError(t, err)
			assert.Equal(t, "feed", v)
		}()
	}

	require.Eventually(t, func() bool {
		e, _ := c.Peek(key)
		return e.Fetching
	}, time.Second, time.Millisecond)
	// Give the remaining callers time to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestInvalidatedResultIsDiscarded(t *testing.T) {
	c := quietCache()
	key := NewKey("findings", "")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(context.Background(), key, func(context.Context) (any, error) {
			close(started)
			<-release
			return "before approve", nil
		})
	}()
	<-started

	c.Invalidate(key)
	_, err := c.Fetch(context.Background(), key, constFetch("after approve"))
	require.NoError(t, err)

	close(release)
	<-done

	v, e, ok := Value[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "after approve", v)
	assert.False(t, e.Stale)
}

func TestReadHonoursStaleTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := quietCache(WithStaleTime(time.Minute), WithClock(func() time.Time { return now }))
	key := NewKey("findings", "sort=newest")

	var calls int
	fn := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v, err := c.Read(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(30 * time.Second)
	v, err = c.Read(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "fresh value served from cache")

	now = now.Add(31 * time.Second)
	v, err = c.Read(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "expired value refetched")

	c.Invalidate(key)
	v, err = c.Read(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, 3, v, "invalidated value refetched")
}

func TestInvalidateNamespace(t *testing.T) {
	c := quietCache()
	a := NewKey("findings", "wing=GEO")
	b := NewKey("findings", "sort=oldest")
	other := NewKey("swarm-status", "")
	for _, k := range []Key{a, b, other} {
		_, err := c.Fetch(context.Background(), k, constFetch(1))
		require.NoError(t, err)
	}

	c.InvalidateNamespace("findings")

	for _, k := range []Key{a, b} {
		e, _ := c.Peek(k)
		assert.True(t, e.Stale, k.String())
		assert.True(t, e.HasValue(), "invalidation keeps the value visible")
	}
	e, _ := c.Peek(other)
	assert.False(t, e.Stale)
}

func TestInvalidateWakesWatchers(t *testing.T) {
	c := quietCache()
	key := NewKey("findings", "wing=GEO")

	ch, unwatch := c.watch(key)
	defer unwatch()

	c.InvalidateNamespace("findings")
	c.InvalidateNamespace("findings")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("watcher not notified")
	}
	select {
	case <-ch:
		t.Fatal("repeated invalidations should collapse into one wake-up")
	default:
	}
}

func TestKeysSorted(t *testing.T) {
	c := quietCache()
	for _, k := range []Key{NewKey("swarm-status", ""), NewKey("findings", "wing=GEO"), NewKey("findings", "")} {
		_, err := c.Fetch(context.Background(), k, constFetch(nil))
		require.NoError(t, err)
	}
	assert.Equal(t, []Key{
		NewKey("findings", ""),
		NewKey("findings", "wing=GEO"),
		NewKey("swarm-status", ""),
	}, c.Keys())
}

func TestValueTypeMismatch(t *testing.T) {
	c := quietCache()
	key := NewKey("swarm-status", "")
	_, err := c.Fetch(context.Background(), key, constFetch("text"))
	require.NoError(t, err)

	_, _, ok := Value[int](c, key)
	assert.False(t, ok)
}
