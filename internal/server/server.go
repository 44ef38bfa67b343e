// Package server exposes the orchestrator over HTTP: webhook events come in,
// matching pipelines run asynchronously, and run status can be polled.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/engine/trigger"
	"go.trai.ch/zerr"
)

// PipelineRunner executes a loaded pipeline for one event.
type PipelineRunner interface {
	Execute(ctx context.Context, pipeline *domain.Pipeline, event domain.Event) domain.PipelineResult
}

// Server accepts webhook events and tracks the runs they start.
type Server struct {
	root   string
	loader ports.ConfigLoader
	runner PipelineRunner
	logger ports.Logger

	mu   sync.RWMutex
	seq  int
	runs map[string]*runRecord
}

type runRecord struct {
	ID         string
	Status     string
	Event      domain.Event
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *domain.PipelineResult
}

// Run states reported by the API.
const (
	runStatusRunning   = "running"
	runStatusSucceeded = "succeeded"
	runStatusFailed    = "failed"
)

// NewServer creates a Server that loads pipelines from root.
func NewServer(root string, loader ports.ConfigLoader, runner PipelineRunner, logger ports.Logger) *Server {
	return &Server{
		root:   root,
		loader: loader,
		runner: runner,
		logger: logger,
		runs:   make(map[string]*runRecord),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/events", s.handleEvent)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)

	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("listening on " + addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type eventRequest struct {
	Type         string   `json:"type"`
	Branch       string   `json:"branch"`
	Commit       string   `json:"commit"`
	ChangedPaths []string `json:"changed_paths"`
}

type eventResponse struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
}

type runResponse struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Branch   string        `json:"branch"`
	Commit   string        `json:"commit,omitempty"`
	Started  time.Time     `json:"started_at"`
	Finished *time.Time    `json:"finished_at,omitempty"`
	Jobs     []jobResponse `json:"jobs,omitempty"`
}

type jobResponse struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	StepsRun   int    `json:"steps_run"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	eventType := domain.EventType(req.Type)
	if !domain.KnownEventType(eventType) {
		writeError(w, http.StatusBadRequest, "unknown event type: "+req.Type)
		return
	}

	event := domain.Event{
		Type:         eventType,
		Branch:       req.Branch,
		Commit:       req.Commit,
		ChangedPaths: req.ChangedPaths,
	}

	pipeline, err := s.loader.Load(s.root)
	if err != nil {
		s.logger.Error(err)
		writeError(w, http.StatusInternalServerError, "pipeline configuration unavailable")
		return
	}

	matched, err := trigger.Matches(event, pipeline.Trigger)
	if err != nil {
		s.logger.Error(err)
		writeError(w, http.StatusInternalServerError, "trigger evaluation failed")
		return
	}
	if !matched {
		writeJSON(w, http.StatusOK, eventResponse{Status: "skipped"})
		return
	}

	record := s.newRun(event)

	// The run outlives the webhook request.
	go func() {
		result := s.runner.Execute(context.Background(), pipeline, event)
		s.finishRun(record.ID, result)
	}()

	writeJSON(w, http.StatusAccepted, eventResponse{ID: record.ID, Status: runStatusRunning})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	record, ok := s.runs[id]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, zerr.With(domain.ErrRunNotFound, "id", id).Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(record))
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]runResponse, 0, len(s.runs))
	for _, record := range s.runs {
		out = append(out, toRunResponse(record))
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) newRun(event domain.Event) *runRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	record := &runRecord{
		ID:        fmt.Sprintf("run-%d", s.seq),
		Status:    runStatusRunning,
		Event:     event,
		StartedAt: time.Now(),
	}
	s.runs[record.ID] = record
	return record
}

func (s *Server) finishRun(id string, result domain.PipelineResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.runs[id]
	if !ok {
		return
	}
	record.FinishedAt = time.Now()
	record.Result = &result
	if result.Succeeded() {
		record.Status = runStatusSucceeded
	} else {
		record.Status = runStatusFailed
	}
}

func toRunResponse(record *runRecord) runResponse {
	resp := runResponse{
		ID:      record.ID,
		Status:  record.Status,
		Branch:  record.Event.Branch,
		Commit:  record.Event.Commit,
		Started: record.StartedAt,
	}
	if !record.FinishedAt.IsZero() {
		finished := record.FinishedAt
		resp.Finished = &finished
	}
	if record.Result != nil {
		for _, outcome := range record.Result.Jobs {
			job := jobResponse{
				Name:       outcome.Job,
				Status:     string(outcome.Status),
				DurationMS: outcome.Duration().Milliseconds(),
				StepsRun:   outcome.StepsRun,
			}
			if outcome.Err != nil {
				job.Error = outcome.Err.Error()
			}
			resp.Jobs = append(resp.Jobs, job)
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
