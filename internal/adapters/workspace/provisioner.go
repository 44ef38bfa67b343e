// Package workspace provisions isolated per-job execution environments.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// allowListedEnvVars are the system environment variables a job may inherit.
// Everything else a step sees comes from the pipeline's explicit env block,
// keeping job environments reproducible.
var allowListedEnvVars = map[string]struct{}{
	"HOME": {},
	"TERM": {},
	"USER": {},
	"PATH": {},
}

// Provisioner implements ports.Provisioner with throwaway directories under
// the repository's metadata dir. Each Provision call yields a fresh
// workspace; nothing is shared across jobs.
type Provisioner struct {
	repoRoot string
	logger   ports.Logger
}

// NewProvisioner creates a Provisioner rooted at the repository root.
func NewProvisioner(repoRoot string, logger ports.Logger) *Provisioner {
	return &Provisioner{repoRoot: repoRoot, logger: logger}
}

// Provision creates an empty isolated workspace for one execution of job and
// assembles its process environment: allow-listed system variables first,
// then the pipeline-global env block, then the job's env overrides, later
// entries winning.
func (p *Provisioner) Provision(
	ctx context.Context,
	job domain.JobSpec,
	pipelineEnv map[string]string,
) (*domain.ExecutionEnvironment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Join(p.repoRoot, domain.DefaultWorkspacePath())
	if err := os.MkdirAll(base, domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, domain.ErrProvisioningFailed.Error())
	}

	dir, err := os.MkdirTemp(base, job.Name+"-")
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrProvisioningFailed.Error()), "job", job.Name)
	}

	return &domain.ExecutionEnvironment{
		Job: job.Name,
		Dir: dir,
		Env: mergeEnvironment(os.Environ(), pipelineEnv, job.Env),
	}, nil
}

// Teardown removes the workspace. Cache contents are stored outside the
// workspace and survive.
func (p *Provisioner) Teardown(env *domain.ExecutionEnvironment) error {
	if env == nil || env.Dir == "" {
		return nil
	}
	return os.RemoveAll(env.Dir)
}

// mergeEnvironment filters sysEnv through the allow-list, then appends the
// pipeline env block and the job overrides in sorted-stable order. Later
// entries shadow earlier ones at lookup time.
func mergeEnvironment(sysEnv []string, pipelineEnv, jobEnv map[string]string) []string {
	merged := make([]string, 0, len(allowListedEnvVars)+len(pipelineEnv)+len(jobEnv))

	for _, kv := range sysEnv {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[key]; allowed {
			merged = append(merged, kv)
		}
	}

	for _, key := range sortedKeys(pipelineEnv) {
		merged = append(merged, fmt.Sprintf("%s=%s", key, pipelineEnv[key]))
	}
	for _, key := range sortedKeys(jobEnv) {
		merged = append(merged, fmt.Sprintf("%s=%s", key, jobEnv[key]))
	}

	return merged
}

// sortedKeys returns the map keys in sorted order so the merged environment
// is deterministic across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
