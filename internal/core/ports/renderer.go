package ports

import (
	"context"
	"time"

	"go.trai.ch/gantry/internal/core/domain"
)

// Renderer is the abstraction for output rendering.
// It decouples run progress from presentation, so the same event stream can
// drive linear CI logs today and richer frontends later.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to flush buffered output and shut down.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	// For synchronous renderers this may return immediately.
	Wait() error

	// OnPlanEmit is called once per run with the expanded job names in
	// declared order.
	OnPlanEmit(jobs []string)

	// OnJobStart is called when a job transitions to Running.
	OnJobStart(job string, startTime time.Time)

	// OnStepStart is called when a step within a job begins.
	OnStepStart(job, step string)

	// OnJobLog is called when a job's child process emits output.
	// data may contain partial lines.
	OnJobLog(job string, data []byte)

	// OnJobComplete is called when a job reaches a terminal status.
	OnJobComplete(outcome domain.JobOutcome)

	// OnResult is called once with the aggregated pipeline result.
	OnResult(result domain.PipelineResult)
}
