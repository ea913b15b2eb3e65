package query

import (
	"context"
	"log/slog"
	"time"
)

// Subscription keeps one key fresh by polling it on a fixed interval and
// refetching immediately whenever the key is invalidated.
type Subscription struct {
	key      Key
	cache    *Cache
	fetch    FetchFunc
	interval time.Duration
	logger   *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	updates chan Entry
}

// Subscribe starts polling key every interval until ctx is cancelled or Stop
// is called. A value already cached and younger than interval is delivered
// at once and the first request waits for the next tick.
func Subscribe(ctx context.Context, c *Cache, key Key, fn FetchFunc, interval time.Duration) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		key:      key,
		cache:    c,
		fetch:    fn,
		interval: interval,
		logger:   c.logger.With("key", key.String()),
		cancel:   cancel,
		done:     make(chan struct{}),
		updates:  make(chan Entry, 1),
	}

	// Registered before returning so an invalidation issued right after
	// Subscribe is never missed.
	invalidated, unwatch := c.watch(key)
	go s.run(ctx, invalidated, unwatch)
	return s
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key {
	return s.key
}

// Updates delivers the key's entry after every fetch attempt. Only the newest
// entry is buffered. The channel is closed once the subscription stops.
func (s *Subscription) Updates() <-chan Entry {
	return s.updates
}

// Done is closed when polling has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Stop ends polling and waits for the loop to exit. A request in flight is
// not aborted; its result still lands in the cache but is not delivered.
func (s *Subscription) Stop() {
	s.cancel()
	<-s.done
}

func (s *Subscription) run(ctx context.Context, invalidated <-chan struct{}, unwatch func()) {
	defer close(s.done)
	defer close(s.updates)
	defer unwatch()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if e, ok := s.cache.Peek(s.key); ok && e.HasValue() {
		s.publish(e)
		if !e.Stale && s.cache.now().Sub(e.UpdatedAt) < s.interval {
			s.logger.Debug("subscription resumed from cache")
		} else {
			s.refresh(ctx)
		}
	} else {
		s.refresh(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-invalidated:
		}
		if ctx.Err() != nil {
			return
		}

		s.refresh(ctx)

		// A tick that fired while the request was in flight is dropped.
		select {
		case <-ticker.C:
		default:
		}
	}
}

// refresh fetches once. Errors are swallowed: the last good value stays in
// the cache and the next tick retries.
func (s *Subscription) refresh(ctx context.Context) {
	result := make(chan error, 1)
	go func() {
		_, err := s.cache.Fetch(context.WithoutCancel(ctx), s.key, s.fetch)
		result <- err
	}()

	select {
	case <-ctx.Done():
		return
	case err := <-result:
		if err != nil {
			s.logger.Warn("poll failed, keeping last result", "error", err)
		}
		if e, ok := s.cache.Peek(s.key); ok {
			s.publish(e)
		}
	}
}

// publish replaces any undelivered entry with e.
func (s *Subscription) publish(e Entry) {
	for {
		select {
		case s.updates <- e:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
