package domain

import (
	"path/filepath"
	"runtime"
)

const (
	// GantryDirName is the name of the internal metadata directory.
	GantryDirName = ".gantry"

	// CacheDirName is the name of the cache store directory.
	CacheDirName = "cache"

	// WorkspaceDirName is the name of the per-job workspace directory.
	WorkspaceDirName = "workspaces"

	// PipelineFileName is the name of the pipeline configuration file.
	PipelineFileName = "gantry.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultCachePath returns the default root directory for the cache store.
func DefaultCachePath() string {
	return filepath.Join(GantryDirName, CacheDirName)
}

// DefaultWorkspacePath returns the default root directory for job workspaces.
func DefaultWorkspacePath() string {
	return filepath.Join(GantryDirName, WorkspaceDirName)
}

// RunnerOS returns the operating-system identifier used in cache keys,
// in the hosted-runner spelling.
func RunnerOS() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return runtime.GOOS
	}
}
