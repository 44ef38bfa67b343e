package ports

import (
	"context"
	"io"

	"go.trai.ch/gantry/internal/core/domain"
)

// StepHandler executes one kind of step inside a provisioned environment.
//
// The scheduler dispatches each step to the handler registered for its kind
// rather than branching on kind tags, so new step kinds only need a new
// handler registration.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type StepHandler interface {
	// Execute runs the step in env. job is the owning job, giving handlers
	// access to job-level declarations such as the cache spec. A non-nil
	// error marks the step failed; the scheduler then skips the job's
	// remaining steps.
	Execute(ctx context.Context, job domain.JobSpec, step domain.StepSpec, env *domain.ExecutionEnvironment, stdout, stderr io.Writer) error
}

// CommandRunner runs a shell command as a child process of the workspace.
//
// It is the narrow surface the shell-command and toolchain-install handlers
// share: the orchestrator does not know what the invoked commands do.
type CommandRunner interface {
	// Run executes command with the environment's working directory and
	// variables, streaming output to stdout and stderr. It returns an error
	// carrying the exit code when the process exits non-zero.
	Run(ctx context.Context, command []string, env *domain.ExecutionEnvironment, stdout, stderr io.Writer) error
}
