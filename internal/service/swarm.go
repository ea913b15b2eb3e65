// Package service keeps remote state in the query cache and ties mutations to
// the invalidations that refresh it.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/query"
)

// Cache namespaces.
const (
	NamespaceStatus   = "swarm-status"
	NamespaceFindings = "findings"
)

// StatusKey is the single key holding the swarm status.
var StatusKey = query.NewKey(NamespaceStatus, "")

// SwarmAPI is the subset of the remote facade the swarm service needs.
type SwarmAPI interface {
	Launch(ctx context.Context) (client.Ack, error)
	Stop(ctx context.Context) (client.Ack, error)
	Status(ctx context.Context) (*client.SwarmStatus, error)
}

// SwarmService reads and controls the swarm job.
type SwarmService struct {
	api      SwarmAPI
	cache    *query.Cache
	interval time.Duration
	logger   *slog.Logger
}

// NewSwarmService creates a swarm service polling status every interval.
func NewSwarmService(api SwarmAPI, cache *query.Cache, interval time.Duration, logger *slog.Logger) *SwarmService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwarmService{api: api, cache: cache, interval: interval, logger: logger}
}

// Interval returns the status poll interval.
func (s *SwarmService) Interval() time.Duration {
	return s.interval
}

func (s *SwarmService) fetchStatus(ctx context.Context) (any, error) {
	return s.api.Status(ctx)
}

// Status returns the swarm status, served from cache while fresh.
func (s *SwarmService) Status(ctx context.Context) (*client.SwarmStatus, error) {
	v, err := s.cache.Read(ctx, StatusKey, s.fetchStatus)
	if err != nil {
		return nil, fmt.Errorf("read swarm status: %w", err)
	}
	return v.(*client.SwarmStatus), nil
}

// WatchStatus polls the swarm status until ctx is done or the subscription
// is stopped.
func (s *SwarmService) WatchStatus(ctx context.Context) *query.Subscription {
	return query.Subscribe(ctx, s.cache, StatusKey, s.fetchStatus, s.interval)
}

// Launch starts the swarm. The cached status is invalidated rather than
// edited; the next read reflects what the backend reports.
func (s *SwarmService) Launch(ctx context.Context) (client.Ack, error) {
	ack, err := s.api.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch swarm: %w", err)
	}
	s.logger.Info("swarm launch requested", "message", ack.Message())
	s.cache.Invalidate(StatusKey)
	return ack, nil
}

// Stop halts the swarm.
func (s *SwarmService) Stop(ctx context.Context) (client.Ack, error) {
	ack, err := s.api.Stop(ctx)
	if err != nil {
		return nil, fmt.Errorf("stop swarm: %w", err)
	}
	s.logger.Info("swarm stop requested", "message", ack.Message())
	s.cache.Invalidate(StatusKey)
	return ack, nil
}

// StatusEntry extracts the swarm status from a subscription update.
func StatusEntry(e query.Entry) (*client.SwarmStatus, bool) {
	st, ok := e.Value.(*client.SwarmStatus)
	return st, ok && st != nil
}
