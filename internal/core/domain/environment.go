package domain

import "strings"

// ExecutionEnvironment is the isolated environment a job's steps run in.
//
// It is produced by the provisioner for exactly one job execution and torn
// down afterwards. Nothing in it is shared across jobs; the cache store is
// the only process-wide state a job touches.
type ExecutionEnvironment struct {
	// Job is the name of the owning job.
	Job string
	// Dir is the workspace root. The checkout step populates it and every
	// step runs with it as working directory.
	Dir string
	// Env holds the merged process environment in "KEY=VALUE" form:
	// allow-listed system variables, then the pipeline-global env block,
	// then job-scoped overrides, later entries winning.
	Env []string
}

// LookupEnv returns the value of key in the merged environment.
func (e *ExecutionEnvironment) LookupEnv(key string) (string, bool) {
	prefix := key + "="
	// Later entries override earlier ones, so scan from the end.
	for i := len(e.Env) - 1; i >= 0; i-- {
		if strings.HasPrefix(e.Env[i], prefix) {
			return strings.TrimPrefix(e.Env[i], prefix), true
		}
	}
	return "", false
}
