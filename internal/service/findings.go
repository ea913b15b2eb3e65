package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/query"
)

// ErrFindingNotFound is returned by Find when no dossier has the given id.
var ErrFindingNotFound = errors.New("finding not found")

// FindingsAPI is the subset of the remote facade the findings service needs.
type FindingsAPI interface {
	ListFindings(ctx context.Context, filter client.Filter) (*client.FindingsPage, error)
	Approve(ctx context.Context, id client.FindingID) (client.Ack, error)
	Kill(ctx context.Context, id client.FindingID) (client.Ack, error)
}

// FindingsKey returns the cache key for one filter combination.
func FindingsKey(filter client.Filter) query.Key {
	return query.NewKey(NamespaceFindings, filter.Key())
}

// FindingService reads the dossier feed and applies review decisions.
type FindingService struct {
	api      FindingsAPI
	cache    *query.Cache
	interval time.Duration
	logger   *slog.Logger
}

// NewFindingService creates a findings service polling every interval.
func NewFindingService(api FindingsAPI, cache *query.Cache, interval time.Duration, logger *slog.Logger) *FindingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FindingService{api: api, cache: cache, interval: interval, logger: logger}
}

// Interval returns the feed poll interval.
func (s *FindingService) Interval() time.Duration {
	return s.interval
}

func (s *FindingService) fetcher(filter client.Filter) query.FetchFunc {
	return func(ctx context.Context) (any, error) {
		page, err := s.api.ListFindings(ctx, filter)
		if err != nil {
			return nil, err
		}
		SortFindings(page.Findings, filter.SortOrDefault())
		return page, nil
	}
}

// List returns the feed for filter, served from cache while fresh.
// The returned page is shared with the cache and must not be modified.
func (s *FindingService) List(ctx context.Context, filter client.Filter) (*client.FindingsPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	v, err := s.cache.Read(ctx, FindingsKey(filter), s.fetcher(filter))
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return v.(*client.FindingsPage), nil
}

// WatchFindings polls the feed for filter. Keys of other filters stay cached
// and are not polled.
func (s *FindingService) WatchFindings(ctx context.Context, filter client.Filter) (*query.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return query.Subscribe(ctx, s.cache, FindingsKey(filter), s.fetcher(filter), s.interval), nil
}

// Find looks a dossier up in the unfiltered feed.
func (s *FindingService) Find(ctx context.Context, id client.FindingID) (*client.Finding, error) {
	page, err := s.List(ctx, client.Filter{})
	if err != nil {
		return nil, err
	}
	for i := range page.Findings {
		if page.Findings[i].ID == id {
			f := page.Findings[i]
			return &f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFindingNotFound, id)
}

// Approve publishes a dossier and refreshes every cached feed.
func (s *FindingService) Approve(ctx context.Context, id client.FindingID) (client.Ack, error) {
	ack, err := s.api.Approve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("approve finding %s: %w", id, err)
	}
	s.logger.Info("finding approved", "id", id.String())
	s.cache.InvalidateNamespace(NamespaceFindings)
	return ack, nil
}

// Kill discards a dossier and refreshes every cached feed.
func (s *FindingService) Kill(ctx context.Context, id client.FindingID) (client.Ack, error) {
	ack, err := s.api.Kill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("kill finding %s: %w", id, err)
	}
	s.logger.Info("finding killed", "id", id.String())
	s.cache.InvalidateNamespace(NamespaceFindings)
	return ack, nil
}

// PageEntry extracts the findings page from a subscription update.
func PageEntry(e query.Entry) (*client.FindingsPage, bool) {
	page, ok := e.Value.(*client.FindingsPage)
	return page, ok && page != nil
}

// SortFindings orders findings in place. Ties fall back to newest first,
// then id, so the order does not depend on what the server returned.
func SortFindings(findings []client.Finding, order client.SortOrder) {
	slices.SortStableFunc(findings, func(a, b client.Finding) int {
		var c int
		switch order {
		case client.SortOldest:
			c = a.CreatedAt.Compare(b.CreatedAt.Time)
		case client.SortHighestConfidence:
			c = cmp.Compare(b.ConfidenceScore, a.ConfidenceScore)
		}
		if c != 0 {
			return c
		}
		if c = b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
