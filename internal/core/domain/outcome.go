package domain

import "time"

// JobStatus is the execution state of a job.
//
// Valid transitions: Pending -> Running -> {Succeeded, Failed, TimedOut}.
type JobStatus string

const (
	// StatusPending indicates the job is waiting to be scheduled.
	StatusPending JobStatus = "Pending"
	// StatusRunning indicates the job is currently executing steps.
	StatusRunning JobStatus = "Running"
	// StatusSucceeded indicates every step exited zero.
	StatusSucceeded JobStatus = "Succeeded"
	// StatusFailed indicates provisioning failed or a step exited non-zero.
	StatusFailed JobStatus = "Failed"
	// StatusTimedOut indicates the job exceeded its wall-clock budget.
	StatusTimedOut JobStatus = "TimedOut"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut
}

// JobOutcome is the recorded result of one job execution.
type JobOutcome struct {
	Job       string
	Status    JobStatus
	Err       error
	StartTime time.Time
	EndTime   time.Time
	// StepsRun counts the steps that started before the job reached a
	// terminal state. With fail-fast semantics this identifies the failing
	// step as the last one counted.
	StepsRun int
}

// Duration returns the wall-clock time the job spent executing.
func (o JobOutcome) Duration() time.Duration {
	return o.EndTime.Sub(o.StartTime)
}

// PipelineStatus is the binary aggregate gate surfaced to the triggering event.
type PipelineStatus string

const (
	// PipelineSucceeded means every job succeeded.
	PipelineSucceeded PipelineStatus = "Succeeded"
	// PipelineFailed means at least one job failed or timed out.
	PipelineFailed PipelineStatus = "Failed"
)

// PipelineResult aggregates all job outcomes for one triggered run.
// Per-job outcomes remain individually inspectable for diagnostics; the
// exposed gate is strictly binary.
type PipelineResult struct {
	Status PipelineStatus
	Jobs   []JobOutcome
}

// Succeeded reports whether the aggregate gate passed.
func (r PipelineResult) Succeeded() bool {
	return r.Status == PipelineSucceeded
}
