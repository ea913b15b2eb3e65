// Package query provides an explicitly owned request cache with key
// namespacing, invalidation, and periodic subscriptions.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query. Namespace groups related keys (all filter
// variants of one feed) so they can be invalidated together.
type Key struct {
	Namespace string
	Params    string
}

// NewKey builds a key; params is expected to be canonical (e.g. url.Values.Encode).
func NewKey(namespace, params string) Key {
	return Key{Namespace: namespace, Params: params}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Namespace
	}
	return k.Namespace + "?" + k.Params
}

// FetchFunc performs the remote read behind a key.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is a point-in-time view of a cached key.
type Entry struct {
	Key       Key
	Value     any       // last successful result; kept when a later fetch fails
	Err       error     // error of the most recent attempt, nil after a success
	UpdatedAt time.Time // time of the last success
	ErrorAt   time.Time // time of the last failure
	Stale     bool      // invalidated since the last success
	Fetching  bool
}

// HasValue reports whether a successful result has ever been stored.
func (e Entry) HasValue() bool {
	return !e.UpdatedAt.IsZero()
}

type entry struct {
	value     any
	err       error
	updatedAt time.Time
	errorAt   time.Time
	stale     bool
	inflight  int
	gen       uint64
}

// Cache stores the latest result per key. Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	entries  map[Key]*entry
	watchers map[Key]map[chan struct{}]struct{}
	flight   singleflight.Group

	staleTime time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime sets how long a value satisfies Read without refetching.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[Key]*entry),
		watchers:  make(map[Key]map[chan struct{}]struct{}),
		staleTime: time.Minute,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getOrCreate returns the entry for key, creating it if needed.
// Caller must hold write lock.
func (c *Cache) getOrCreate(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Fetch runs fn for key and stores the outcome. Concurrent fetches of the
// same key are coalesced into one call unless an invalidation happened in
// between. On failure the previous value is kept and the error recorded.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	c.mu.Lock()
	e := c.getOrCreate(key)
	gen := e.gen
	c.mu.Unlock()

	flightKey := fmt.Sprintf("%s#%d", key, gen)
	v, err, shared := c.flight.Do(flightKey, func() (any, error) {
		c.mu.Lock()
		c.getOrCreate(key).inflight++
		c.mu.Unlock()

		value, err := fn(ctx)
		c.store(key, gen, value, err)
		return value, err
	})
	if shared {
		c.logger.Debug("query coalesced", "key", key.String())
	}
	return v, err
}

// store records a fetch outcome. Results from a generation that has since
// been invalidated are dropped so they cannot overwrite fresher data.
func (c *Cache) store(key Key, gen uint64, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.getOrCreate(key)
	e.inflight--
	if e.gen != gen {
		c.logger.Debug("discarding result of invalidated query", "key", key.String())
		return
	}
	now := c.now()
	if err != nil {
		e.err = err
		e.errorAt = now
		return
	}
	e.value = value
	e.err = nil
	e.updatedAt = now
	e.stale = false
}

// Read returns the cached value when it is fresh, otherwise it fetches.
func (c *Cache) Read(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	fresh := ok && !e.updatedAt.IsZero() && !e.stale && c.now().Sub(e.updatedAt) < c.staleTime
	var v any
	if fresh {
		v = e.value
	}
	c.mu.RUnlock()

	if fresh {
		return v, nil
	}
	return c.Fetch(ctx, key, fn)
}

// Peek returns the current entry for key without fetching.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{Key: key}, false
	}
	return Entry{
		Key:       key,
		Value:     e.value,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		ErrorAt:   e.errorAt,
		Stale:     e.stale,
		Fetching:  e.inflight > 0,
	}, true
}

// Invalidate marks key stale and wakes its subscriptions so they refetch now.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key)
}

// InvalidateNamespace invalidates every key in ns, including keys that have
// never been fetched but are being watched.
func (c *Cache) InvalidateNamespace(ns string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[Key]struct{})
	for key := range c.entries {
		if key.Namespace == ns {
			seen[key] = struct{}{}
		}
	}
	for key := range c.watchers {
		if key.Namespace == ns {
			seen[key] = struct{}{}
		}
	}
	for key := range seen {
		c.invalidateLocked(key)
	}
}

// Caller must hold write lock.
func (c *Cache) invalidateLocked(key Key) {
	e := c.getOrCreate(key)
	e.stale = true
	e.gen++
	c.logger.Debug("query invalidated", "key", key.String())

	for ch := range c.watchers[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Keys returns all keys currently held, sorted by their string form.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// watch registers for invalidation notices on key. The channel has a buffer
// of one so repeated invalidations collapse into a single wake-up.
func (c *Cache) watch(key Key) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	if c.watchers[key] == nil {
		c.watchers[key] = make(map[chan struct{}]struct{})
	}
	c.watchers[key][ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers[key], ch)
		if len(c.watchers[key]) == 0 {
			delete(c.watchers, key)
		}
	}
}

// Value returns the cached value for key as T.
func Value[T any](c *Cache, key Key) (T, Entry, bool) {
	var zero T
	e, ok := c.Peek(key)
	if !ok || !e.HasValue() {
		return zero, e, false
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, e, false
	}
	return v, e, true
}

func sortKeys(keys []Key) {
	slices.SortFunc(keys, func(a, b Key) int {
		return strings.Compare(a.String(), b.String())
	})
}
