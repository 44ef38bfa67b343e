package domain

// Event is an incoming repository event considered for triggering a run.
type Event struct {
	Type   EventType
	Branch string
	// Commit is the revision the checkout step should place in the workspace.
	// Empty means the current worktree state.
	Commit string
	// ChangedPaths lists the files touched by the event, relative to the
	// repository root. An empty list cannot be fully excluded and therefore
	// always triggers.
	ChangedPaths []string
}
