// Package scheduler executes pipeline jobs and aggregates their outcomes.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs the jobs of one triggered pipeline.
//
// Jobs are independent units of work: they run in parallel, each in its own
// provisioned environment, and a failure in one never cancels a sibling. The
// only cross-job state is the cache store, whose first-writer-wins saves make
// concurrent access safe.
type Scheduler struct {
	provisioner ports.Provisioner
	cache       ports.CacheStore
	handlers    map[domain.StepKind]ports.StepHandler
	renderer    ports.Renderer
	logger      ports.Logger

	mu        sync.RWMutex
	jobStatus map[string]domain.JobStatus
}

// NewScheduler creates a Scheduler with the given step handler registry.
func NewScheduler(
	provisioner ports.Provisioner,
	cache ports.CacheStore,
	handlers map[domain.StepKind]ports.StepHandler,
	renderer ports.Renderer,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		provisioner: provisioner,
		cache:       cache,
		handlers:    handlers,
		renderer:    renderer,
		logger:      logger,
		jobStatus:   make(map[string]domain.JobStatus),
	}
}

// Status returns the last observed status of a job in this run.
func (s *Scheduler) Status(job string) domain.JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.jobStatus[job]; ok {
		return status
	}
	return domain.StatusPending
}

func (s *Scheduler) setStatus(job string, status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus[job] = status
}

// Run executes every job of the pipeline with at most parallelism jobs in
// flight and returns the aggregated result. Job failures are captured in the
// result rather than returned: only the caller decides whether a Failed
// aggregate is an error.
func (s *Scheduler) Run(ctx context.Context, pipeline *domain.Pipeline, parallelism int) domain.PipelineResult {
	if parallelism < 1 {
		parallelism = 1
	}

	names := make([]string, len(pipeline.Jobs))
	for i, job := range pipeline.Jobs {
		names[i] = job.Name
		s.setStatus(job.Name, domain.StatusPending)
	}
	s.renderer.OnPlanEmit(names)

	outcomes := make([]domain.JobOutcome, len(pipeline.Jobs))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, job := range pipeline.Jobs {
		g.Go(func() error {
			outcomes[i] = s.runJob(ctx, pipeline, job)
			return nil
		})
	}
	// Goroutines never return errors; outcomes carry all failure detail.
	_ = g.Wait()

	result := Aggregate(outcomes)
	s.renderer.OnResult(result)
	return result
}

// runJob drives one job through its state machine:
// Pending -> Running -> {Succeeded, Failed, TimedOut}.
func (s *Scheduler) runJob(ctx context.Context, pipeline *domain.Pipeline, job domain.JobSpec) domain.JobOutcome {
	start := time.Now()
	s.setStatus(job.Name, domain.StatusRunning)
	s.renderer.OnJobStart(job.Name, start)

	timeout := time.Duration(job.TimeoutMinutes) * time.Minute
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := s.executeSteps(jobCtx, pipeline, job)
	outcome.Job = job.Name
	outcome.StartTime = start
	outcome.EndTime = time.Now()

	// A deadline hit on the job context is a timeout regardless of which
	// step happened to observe it, unless the whole run was cancelled.
	if outcome.Err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		outcome.Status = domain.StatusTimedOut
		outcome.Err = zerr.With(domain.ErrJobTimedOut, "timeout_minutes", job.TimeoutMinutes)
	}

	s.setStatus(job.Name, outcome.Status)
	s.renderer.OnJobComplete(outcome)
	return outcome
}

func (s *Scheduler) executeSteps(ctx context.Context, pipeline *domain.Pipeline, job domain.JobSpec) domain.JobOutcome {
	env, err := s.provisioner.Provision(ctx, job, pipeline.Env)
	if err != nil {
		return domain.JobOutcome{
			Status: domain.StatusFailed,
			Err:    zerr.Wrap(err, domain.ErrProvisioningFailed.Error()),
		}
	}
	defer func() {
		if err := s.provisioner.Teardown(env); err != nil {
			s.logger.Warn("workspace teardown failed: " + err.Error())
		}
	}()

	logs := &rendererWriter{renderer: s.renderer, job: job.Name}

	for i, step := range job.Steps {
		s.renderer.OnStepStart(job.Name, displayName(step))

		handler, ok := s.handlers[step.Kind]
		if !ok {
			return domain.JobOutcome{
				Status:   domain.StatusFailed,
				Err:      zerr.With(domain.ErrUnknownStepKind, "kind", string(step.Kind)),
				StepsRun: i + 1,
			}
		}

		if err := handler.Execute(ctx, job, step, env, logs, logs); err != nil {
			// Fail fast: remaining steps are skipped.
			return domain.JobOutcome{
				Status:   domain.StatusFailed,
				Err:      classifyStepError(step, err),
				StepsRun: i + 1,
			}
		}
	}

	// Save after success only; an existing entry makes this a no-op. A save
	// failure degrades future runs but never fails a green job.
	if job.Cache != nil {
		if err := s.cache.Save(ctx, *job.Cache, env); err != nil {
			s.logger.Warn("cache save failed: " + err.Error())
		}
	}

	return domain.JobOutcome{Status: domain.StatusSucceeded, StepsRun: len(job.Steps)}
}

// classifyStepError keeps the error taxonomy: environment setup steps raise
// provisioning errors, everything else is a step failure. Aggregation treats
// them identically; the distinction is for diagnostics.
func classifyStepError(step domain.StepSpec, err error) error {
	wrapped := zerr.With(zerr.Wrap(err, domain.ErrStepFailed.Error()), "step", displayName(step))
	switch step.Kind {
	case domain.StepCheckout, domain.StepToolchainInstall:
		return zerr.Wrap(wrapped, domain.ErrProvisioningFailed.Error())
	default:
		return wrapped
	}
}

// Aggregate folds job outcomes into the binary pipeline gate: Succeeded iff
// every job succeeded. TimedOut and Failed jobs count the same here.
func Aggregate(outcomes []domain.JobOutcome) domain.PipelineResult {
	status := domain.PipelineSucceeded
	for _, o := range outcomes {
		if o.Status != domain.StatusSucceeded {
			status = domain.PipelineFailed
			break
		}
	}
	return domain.PipelineResult{Status: status, Jobs: outcomes}
}

func displayName(step domain.StepSpec) string {
	if step.Name != "" {
		return step.Name
	}
	if step.Kind == domain.StepShellCommand {
		if cmd := step.Params["command"]; cmd != "" {
			return cmd
		}
	}
	return string(step.Kind)
}

// rendererWriter streams raw job output to the renderer.
type rendererWriter struct {
	renderer ports.Renderer
	job      string
}

func (w *rendererWriter) Write(p []byte) (int, error) {
	w.renderer.OnJobLog(w.job, p)
	return len(p), nil
}
