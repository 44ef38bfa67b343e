package ports

import (
	"context"

	"go.trai.ch/gantry/internal/core/domain"
)

// Provisioner creates and destroys isolated per-job execution environments.
//
//go:generate mockgen -source=provisioner.go -destination=mocks/mock_provisioner.go -package=mocks
type Provisioner interface {
	// Provision creates a fresh workspace for one execution of job, with the
	// pipeline-global env block merged into the process environment. It only
	// mutates state local to the new workspace.
	Provision(ctx context.Context, job domain.JobSpec, pipelineEnv map[string]string) (*domain.ExecutionEnvironment, error)

	// Teardown removes the workspace. Cache contents outlive teardown; the
	// workspace itself does not.
	Teardown(env *domain.ExecutionEnvironment) error
}
