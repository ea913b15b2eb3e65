package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func nextUpdate(t *testing.T, s *Subscription) Entry {
	t.Helper()
	select {
	case e, ok := <-s.Updates():
		require.True(t, ok, "updates closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return Entry{}
	}
}

func counterFetch(calls *atomic.Int32) FetchFunc {
	return func(context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}
}

func TestSubscriptionFetchesImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	var calls atomic.Int32

	s := Subscribe(context.Background(), c, NewKey("swarm-status", ""), counterFetch(&calls), time.Hour)
	defer s.Stop()

	e := nextUpdate(t, s)
	assert.Equal(t, 1, e.Value)
	assert.Equal(t, NewKey("swarm-status", ""), s.Key())
}

func TestSubscriptionPolls(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	var calls atomic.Int32

	s := Subscribe(context.Background(), c, NewKey("findings", ""), counterFetch(&calls), 10*time.Millisecond)
	defer s.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestInvalidationTriggersImmediateRefetch(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	key := NewKey("findings", "wing=GEO")
	var calls atomic.Int32

	s := Subscribe(context.Background(), c, key, counterFetch(&calls), time.Hour)
	defer s.Stop()
	assert.Equal(t, 1, nextUpdate(t, s).Value)

	c.InvalidateNamespace("findings")

	e := nextUpdate(t, s)
	assert.Equal(t, 2, e.Value, "refetched without waiting for the next tick")
	assert.False(t, e.Stale)
}

func TestFailedPollKeepsLastValue(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	key := NewKey("swarm-status", "")

	var fail atomic.Bool
	fn := func(context.Context) (any, error) {
		if fail.Load() {
			return nil, errors.New("backend unreachable")
		}
		return "active", nil
	}

	s := Subscribe(context.Background(), c, key, fn, time.Hour)
	defer s.Stop()
	assert.Equal(t, "active", nextUpdate(t, s).Value)

	fail.Store(true)
	c.Invalidate(key)

	e := nextUpdate(t, s)
	assert.Equal(t, "active", e.Value)
	assert.Error(t, e.Err)
}

func TestSubscriptionResumesFromFreshCache(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	key := NewKey("findings", "sort=oldest")
	_, err := c.Fetch(context.Background(), key, constFetch("cached"))
	require.NoError(t, err)

	var calls atomic.Int32
	s := Subscribe(context.Background(), c, key, counterFetch(&calls), time.Hour)
	defer s.Stop()

	assert.Equal(t, "cached", nextUpdate(t, s).Value)
	assert.Zero(t, calls.Load())
}

func TestStopLeavesInFlightRequestRunning(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	key := NewKey("swarm-status", "")

	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	fn := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return "late", nil
	}

	s := Subscribe(context.Background(), c, key, fn, time.Hour)
	<-started
	s.Stop()

	_, ok := <-s.Updates()
	assert.False(t, ok, "updates closed after stop")

	close(release)
	require.Eventually(t, func() bool {
		v, _, ok := Value[string](c, key)
		return ok && v == "late"
	}, time.Second, time.Millisecond)
	assert.False(t, sawCancel.Load(), "in-flight request is not aborted")
}

func TestParentContextStopsSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := quietCache()
	ctx, cancel := context.WithCancel(context.Background())

	s := Subscribe(ctx, c, NewKey("swarm-status", ""), constFetch(1), time.Hour)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.Empty(t, c.watchers)
}
