package domain

import "go.trai.ch/zerr"

// Configuration errors. These are fatal at expansion time, before any job runs.
var (
	// ErrConfigNotFound is returned when no pipeline file can be found.
	ErrConfigNotFound = zerr.New("could not find pipeline file")

	// ErrConfigReadFailed is returned when the pipeline file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read pipeline file")

	// ErrConfigParseFailed is returned when the pipeline file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse pipeline file")

	// ErrNoJobsDefined is returned when a pipeline declares no jobs.
	ErrNoJobsDefined = zerr.New("pipeline declares no jobs")

	// ErrDuplicateJobName is returned when two jobs share a name.
	ErrDuplicateJobName = zerr.New("duplicate job name")

	// ErrInvalidJobName is returned when a job name contains invalid characters.
	ErrInvalidJobName = zerr.New("job name can only contain alphanumeric characters, hyphens and underscores")

	// ErrUnknownStepKind is returned when a step declares an unrecognized kind.
	ErrUnknownStepKind = zerr.New("unrecognized step kind")

	// ErrUnknownEventType is returned when a trigger lists an unrecognized event type.
	ErrUnknownEventType = zerr.New("unrecognized trigger event type")

	// ErrInvalidTimeout is returned when a job timeout is not a positive number of minutes.
	ErrInvalidTimeout = zerr.New("job timeout must be a positive number of minutes")

	// ErrStepConflict is returned when a step declares both an action and a command.
	ErrStepConflict = zerr.New("step cannot declare both an action and a run command")

	// ErrInvalidPattern is returned when a trigger glob pattern does not compile.
	ErrInvalidPattern = zerr.New("invalid glob pattern")
)

// Provisioning errors. Fatal to the affected job only, no retry.
var (
	// ErrProvisioningFailed is returned when workspace setup fails.
	ErrProvisioningFailed = zerr.New("environment provisioning failed")

	// ErrCheckoutFailed is returned when the repository worktree cannot be copied.
	ErrCheckoutFailed = zerr.New("checkout failed")

	// ErrToolchainInstallFailed is returned when the toolchain installer exits non-zero.
	ErrToolchainInstallFailed = zerr.New("toolchain install failed")
)

// Execution errors. Job-local; siblings are never aborted.
var (
	// ErrStepFailed is returned when a step exits non-zero. Remaining steps
	// in the job are skipped.
	ErrStepFailed = zerr.New("step failed")

	// ErrJobTimedOut is returned when a job exceeds its wall-clock budget.
	ErrJobTimedOut = zerr.New("job timed out")

	// ErrPipelineFailed is returned by the run entrypoint when the aggregate
	// gate is Failed.
	ErrPipelineFailed = zerr.New("pipeline failed")
)

// Cache store errors.
var (
	// ErrCacheCreateFailed is returned when the cache root cannot be created.
	ErrCacheCreateFailed = zerr.New("failed to create cache directory")

	// ErrCacheRestoreFailed is returned when copying a cache entry into the
	// workspace fails.
	ErrCacheRestoreFailed = zerr.New("failed to restore cache entry")

	// ErrCacheSaveFailed is returned when persisting a cache entry fails.
	ErrCacheSaveFailed = zerr.New("failed to save cache entry")
)

// Server errors.
var (
	// ErrNoMatchingTrigger is returned when an event does not match the
	// pipeline's trigger rules.
	ErrNoMatchingTrigger = zerr.New("event does not match any trigger rule")

	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = zerr.New("run not found")
)
