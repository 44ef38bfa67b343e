package cache

import (
	"context"
	"fmt"
	"io"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
)

// RestoreHandler executes cache-restore steps against the job's cache spec.
type RestoreHandler struct {
	store ports.CacheStore
}

// NewRestoreHandler creates a handler for cache-restore steps.
func NewRestoreHandler(store ports.CacheStore) *RestoreHandler {
	return &RestoreHandler{store: store}
}

// Execute restores the job's declared cache paths. A miss is not a failure;
// the job simply starts cold. A job without a cache block makes the step a
// no-op rather than an error, so shared step lists stay reusable.
func (h *RestoreHandler) Execute(
	ctx context.Context,
	job domain.JobSpec,
	_ domain.StepSpec,
	env *domain.ExecutionEnvironment,
	stdout, _ io.Writer,
) error {
	if job.Cache == nil {
		fmt.Fprintln(stdout, "no cache configured for this job")
		return nil
	}

	hit, err := h.store.Restore(ctx, *job.Cache, env)
	if err != nil {
		return err
	}

	key := ResolveKey(job.Cache.Key)
	if hit {
		fmt.Fprintf(stdout, "cache restored for key %s\n", key)
	} else {
		fmt.Fprintf(stdout, "cache miss for key %s\n", key)
	}
	return nil
}
