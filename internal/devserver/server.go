package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/raphaelgruber/infomly/internal/client"
	"golang.org/x/sync/errgroup"
)

// APIPrefix is the path prefix of every backend route.
const APIPrefix = "/api"

// Server exposes a Store and Swarm over the backend's REST contract.
type Server struct {
	store  *Store
	swarm  *Swarm
	logger *slog.Logger
}

// New creates a server over store and swarm.
func New(store *Store, swarm *Swarm, logger *slog.Logger) *Server {
	return &Server{store: store, swarm: swarm, logger: logger}
}

// Handler returns the routed, logged HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+APIPrefix+"/findings", s.handleFindings)
	mux.HandleFunc("POST "+APIPrefix+"/admin/swarm/launch", s.handleLaunch)
	mux.HandleFunc("POST "+APIPrefix+"/admin/swarm/stop", s.handleStop)
	mux.HandleFunc("GET "+APIPrefix+"/admin/swarm/status", s.handleStatus)
	mux.HandleFunc("POST "+APIPrefix+"/admin/review/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST "+APIPrefix+"/admin/review/{id}/kill", s.handleKill)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return LoggingMiddleware(s.logger, mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and stops any active swarm run.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("backend available", "url", fmt.Sprintf("http://localhost%s%s", addr, APIPrefix))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.swarm.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// errorBody mirrors the backend's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Detail: msg})
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := client.Filter{
		Wing: q.Get("wing"),
		Sort: client.SortOrder(q.Get("sort")),
	}
	if raw := q.Get("min_confidence"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "min_confidence must be an integer")
			return
		}
		filter.MinConfidence = &n
	}
	if err := filter.Validate(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"data": s.store.List(filter)})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	run, err := s.swarm.Launch()
	if errors.Is(err, ErrSwarmActive) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, client.Ack{
		"status":  "launched",
		"message": fmt.Sprintf("Swarm deployed: %d agents", run.Total),
		"run_id":  run.ID,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	run, stopped := s.swarm.Stop()
	if !stopped {
		s.writeJSON(w, http.StatusOK, client.Ack{"status": "idle", "message": "Swarm not active"})
		return
	}
	s.writeJSON(w, http.StatusOK, client.Ack{
		"status":  "stopped",
		"message": fmt.Sprintf("Swarm recalled: %d agents still out", run.Pending),
		"run_id":  run.ID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.swarm.Status())
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := client.FindingID(r.PathValue("id"))
	f, err := s.store.Approve(id)
	if err != nil {
		s.writeReviewError(w, err)
		return
	}
	s.logger.Info("finding approved", "id", id.String())
	s.writeJSON(w, http.StatusOK, client.Ack{"status": string(f.Status), "id": id})
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id := client.FindingID(r.PathValue("id"))
	if err := s.store.Kill(id); err != nil {
		s.writeReviewError(w, err)
		return
	}
	s.logger.Info("finding killed", "id", id.String())
	s.writeJSON(w, http.StatusOK, client.Ack{"status": string(client.StatusKilled), "id": id})
}

func (s *Server) writeReviewError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Finding not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
