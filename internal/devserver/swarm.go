package devserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/infomly/internal/client"
)

// ErrSwarmActive is returned when a launch is requested while a run is in progress.
var ErrSwarmActive = errors.New("swarm already active")

// RunStatus represents the state of a swarm run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
)

// Run is one swarm deployment. Each agent files a single dossier.
type Run struct {
	ID          string
	Status      RunStatus
	Agents      []string
	Pending     int
	Total       int
	StartedAt   time.Time
	CompletedAt *time.Time

	cancel context.CancelFunc
}

// Swarm simulates the backend's background job: launching starts a run whose
// agents file dossiers one after another until all report or the run is stopped.
type Swarm struct {
	store      *Store
	agents     int
	agentDelay time.Duration
	logger     *slog.Logger

	mu  sync.Mutex
	run *Run
	wg  sync.WaitGroup
	seq int
}

// NewSwarm creates a swarm of agents that each take agentDelay to report.
func NewSwarm(store *Store, agents int, agentDelay time.Duration, logger *slog.Logger) *Swarm {
	if agents <= 0 {
		agents = 4
	}
	return &Swarm{
		store:      store,
		agents:     agents,
		agentDelay: agentDelay,
		logger:     logger,
	}
}

// Launch starts a run. It fails with ErrSwarmActive while a run is in progress.
func (s *Swarm) Launch() (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil && s.run.Status == RunStatusRunning {
		return Run{}, ErrSwarmActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        uuid.New().String()[:8],
		Status:    RunStatusRunning,
		Agents:    make([]string, s.agents),
		Pending:   s.agents,
		Total:     s.agents,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	for i := range run.Agents {
		run.Agents[i] = "agent-" + uuid.New().String()[:8]
	}
	s.run = run

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, run)
	}()

	s.logger.Info("swarm launched", "run_id", run.ID, "agents", run.Total)
	return run.snapshot(), nil
}

// Stop recalls the active run's agents. Stopping an idle swarm is a no-op
// and reports false.
func (s *Swarm) Stop() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.run.Status != RunStatusRunning {
		return Run{}, false
	}
	s.finishLocked(s.run, RunStatusStopped)
	s.logger.Info("swarm stopped", "run_id", s.run.ID, "pending", s.run.Pending)
	return s.run.snapshot(), true
}

// Status returns the backend's view of the swarm. Progress is only reported
// while a run is active.
func (s *Swarm) Status() client.SwarmStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.run.Status != RunStatusRunning {
		return client.SwarmStatus{}
	}
	return client.SwarmStatus{
		Active:   true,
		Progress: &client.Progress{Pending: s.run.Pending, Total: s.run.Total},
	}
}

// Close stops any active run and waits for its agents to exit.
func (s *Swarm) Close() {
	s.Stop()
	s.wg.Wait()
}

func (s *Swarm) execute(ctx context.Context, run *Run) {
	timer := time.NewTimer(s.agentDelay)
	defer timer.Stop()

	for i, agent := range run.Agents {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.Lock()
		if run.Status != RunStatusRunning {
			s.mu.Unlock()
			return
		}
		s.seq++
		draft := draftDossier(wingForAgent(i), s.seq)
		draft.AgentID = agent
		f := s.store.File(draft)
		run.Pending--
		if run.Pending == 0 {
			s.finishLocked(run, RunStatusCompleted)
		}
		s.mu.Unlock()

		s.logger.Debug("agent reported", "run_id", run.ID, "agent", agent, "finding_id", f.ID.String())
		timer.Reset(s.agentDelay)
	}
	s.logger.Info("swarm run completed", "run_id", run.ID, "filed", run.Total)
}

// finishLocked ends run and releases its agents. Caller must hold s.mu.
func (s *Swarm) finishLocked(run *Run, status RunStatus) {
	run.cancel()
	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
}

func (r *Run) snapshot() Run {
	return Run{
		ID:          r.ID,
		Status:      r.Status,
		Agents:      append([]string(nil), r.Agents...),
		Pending:     r.Pending,
		Total:       r.Total,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}
