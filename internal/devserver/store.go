// Package devserver is an in-memory stand-in for the intelligence backend.
// It serves the same REST contract the client consumes so the dashboard and
// CLI can be exercised without the real swarm.
package devserver

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/service"
)

// ErrNotFound is returned for review actions on an unknown dossier.
var ErrNotFound = errors.New("finding not found")

// Store holds the dossiers filed by swarm runs. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	findings map[client.FindingID]client.Finding
	nextID   int
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		findings: make(map[client.FindingID]client.Finding),
		nextID:   1,
		now:      time.Now,
	}
}

// File assigns the next numeric id and creation time to f and stores it.
func (s *Store) File(f client.Finding) client.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = client.FindingID(strconv.Itoa(s.nextID))
	s.nextID++
	if f.CreatedAt.IsZero() {
		f.CreatedAt = client.Timestamp{Time: s.now().UTC()}
	}
	s.findings[f.ID] = f
	return f
}

// Get returns a dossier by id.
func (s *Store) Get(id client.FindingID) (client.Finding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.findings[id]
	return f, ok
}

// List returns the dossiers matching filter in the filter's sort order.
func (s *Store) List(filter client.Filter) []client.Finding {
	s.mu.RLock()
	out := make([]client.Finding, 0, len(s.findings))
	for _, f := range s.findings {
		if filter.Wing != "" && filter.Wing != client.WingAll && f.Wing != filter.Wing {
			continue
		}
		if filter.MinConfidence != nil && f.ConfidenceScore < float64(*filter.MinConfidence) {
			continue
		}
		out = append(out, f)
	}
	s.mu.RUnlock()

	service.SortFindings(out, filter.SortOrDefault())
	return out
}

// Approve publishes a dossier.
func (s *Store) Approve(id client.FindingID) (client.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.findings[id]
	if !ok {
		return client.Finding{}, fmt.Errorf("approve %s: %w", id, ErrNotFound)
	}
	f.Status = client.StatusPublished
	s.findings[id] = f
	return f, nil
}

// Kill removes a dossier from the feed.
func (s *Store) Kill(id client.FindingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findings[id]; !ok {
		return fmt.Errorf("kill %s: %w", id, ErrNotFound)
	}
	delete(s.findings, id)
	return nil
}

// Len returns the number of stored dossiers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.findings)
}

// Seed files one published dossier per wing, backdated so fresh swarm
// output sorts above them.
func (s *Store) Seed() {
	base := s.now().UTC().Add(-6 * time.Hour)
	for i, wing := range client.Wings {
		f := draftDossier(wing, i)
		f.Status = client.StatusPublished
		f.CreatedAt = client.Timestamp{Time: base.Add(time.Duration(i) * time.Hour)}
		s.File(f)
	}
}

// briefs are the canned subjects agents report on, per wing.
var briefs = map[string][]string{
	client.WingDeepSeek: {
		"The $6M Training Run That Rattled Hyperscaler Capex",
		"Distillation Pipelines Behind Open-Weight Reasoning Models",
	},
	client.WingInfrastructure: {
		"Agent Runtimes Are Becoming the New Application Server",
		"Tool-Calling Latency Is the Hidden Cost of Agentic Workflows",
	},
	client.WingCommerce: {
		"Checkout Agents and the Coming Fight Over Payment Rails",
		"Merchants Rewrite Catalogs for Machine Buyers",
	},
	client.WingGEO: {
		"Answer Engines Are Eating Organic Search Traffic",
		"Citation Share Is the New Ranking Signal",
	},
}

// draftDossier builds a complete dossier for wing. n varies the subject and
// confidence so successive dossiers differ.
func draftDossier(wing string, n int) client.Finding {
	subjects := briefs[wing]
	title := subjects[n%len(subjects)]
	return client.Finding{
		Wing:        wing,
		Status:      client.StatusReview,
		Title:       title,
		Description: fmt.Sprintf("Swarm brief for %s: signals converged across %d independent sources.", wing, 3+n%4),
		Analysis: fmt.Sprintf("**%s**\n\nPrimary sources show a sustained shift in spend and attention. "+
			"Secondary coverage lags the underlying data by roughly two quarters.", title),
		Findings: client.TextList{
			"Budget is moving from experimentation to production deployments.",
			"Incumbents are responding with pricing rather than product.",
		},
		StrategicAdvice: client.TextList{
			"Re-baseline vendor contracts against current unit costs.",
			"Assign an owner to track the shift quarterly.",
		},
		ImpactMetrics: client.MetricList{
			{Label: "Market shift", Value: fmt.Sprintf("%d%%", 10+n*5%40)},
			{Label: "Time horizon", Value: fmt.Sprintf("%d months", 6+n%3*6)},
		},
		VisualSchema:    "graph TD\n  Signal --> Analysis\n  Analysis --> Advice",
		ConfidenceScore: float64(70 + (n*7)%30),
		CurrentPhase:    client.PhaseComplete,
		ThoughtLog:      thoughtLog(title),
	}
}

func thoughtLog(title string) []client.Thought {
	log := make([]client.Thought, 0, len(client.Phases))
	for _, p := range client.Phases {
		log = append(log, client.Thought{
			Phase:   p,
			Status:  "complete",
			Message: fmt.Sprintf("%s pass finished on %q", p, title),
		})
	}
	return log
}

// wingForAgent spreads agents across wings in display order.
func wingForAgent(i int) string {
	return client.Wings[i%len(client.Wings)]
}
