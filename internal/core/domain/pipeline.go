package domain

// EventType classifies a repository event that can start a pipeline run.
type EventType string

const (
	// EventPush is a push to a branch.
	EventPush EventType = "push"
	// EventPullRequest is a pull request opened against or updated on a branch.
	EventPullRequest EventType = "pull_request"
)

// KnownEventType reports whether t is an event type the orchestrator understands.
func KnownEventType(t EventType) bool {
	return t == EventPush || t == EventPullRequest
}

// TriggerRule describes when a pipeline run is initiated from a repository event.
//
// An event matches when its type is in Events, its branch matches one of the
// Branches globs, and at least one of its changed paths is not covered by a
// PathsIgnore glob. An event with no changed paths always triggers.
type TriggerRule struct {
	Events      []EventType
	Branches    []string
	PathsIgnore []string
}

// StepKind is the tagged variant discriminator for pipeline steps.
type StepKind string

const (
	// StepCheckout places a fresh copy of the repository worktree in the job workspace.
	StepCheckout StepKind = "checkout"
	// StepCacheRestore restores the job's cache paths if an entry exists for the resolved key.
	StepCacheRestore StepKind = "cache-restore"
	// StepShellCommand runs a shell command as a child process in the workspace.
	StepShellCommand StepKind = "shell-command"
	// StepToolchainInstall installs a toolchain pinned to a named channel and profile.
	StepToolchainInstall StepKind = "toolchain-install"
)

// KnownStepKind reports whether k is a step kind with a registered handler.
func KnownStepKind(k StepKind) bool {
	switch k {
	case StepCheckout, StepCacheRestore, StepShellCommand, StepToolchainInstall:
		return true
	}
	return false
}

// StepSpec is a single action or command executed within a job's workspace.
type StepSpec struct {
	Kind StepKind
	// Name is an optional display name. Empty means the renderer derives one
	// from the kind or command.
	Name string
	// Params carries kind-specific parameters, e.g. "command" for
	// shell-command steps or "channel" and "components" for toolchain-install.
	Params map[string]string
}

// CacheSpec identifies a reusable set of cached filesystem paths across runs.
//
// Key may contain the ${os} placeholder, which resolves to the runner OS
// identifier. The resolved key addresses an immutable cache entry: once an
// entry exists for a key it is never refreshed, only replaced by changing the
// key string itself.
type CacheSpec struct {
	Key   string
	Paths []string
}

// JobSpec is an independently scheduled, isolated unit of pipeline work.
type JobSpec struct {
	Name           string
	TimeoutMinutes int
	// Env holds job-scoped environment overrides, merged over the
	// pipeline-global env block at provisioning time.
	Env   map[string]string
	Steps []StepSpec
	Cache *CacheSpec
}

// Pipeline is the expanded, validated form of a pipeline configuration file.
//
// Env is the pipeline-global environment block. It is carried explicitly and
// merged into every job's process environment at provisioning time rather
// than living in ambient process state, so jobs stay independently testable.
type Pipeline struct {
	Name    string
	Trigger TriggerRule
	Env     map[string]string
	Jobs    []JobSpec
}

// Job returns the job with the given name, if declared.
func (p *Pipeline) Job(name string) (JobSpec, bool) {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobSpec{}, false
}
