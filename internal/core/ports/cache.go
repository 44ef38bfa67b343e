package ports

import (
	"context"

	"go.trai.ch/gantry/internal/core/domain"
)

// CacheStore persists keyed filesystem paths across runs.
//
// Entries are immutable by key: Save is a no-op when an entry for the
// resolved key already exists (first-writer-wins), so concurrent jobs racing
// to save the same key are safe. The key carries no dependency-hash
// component; serving a stale entry is accepted behavior, invalidated only by
// editing the key string or by the store's own expiry.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type CacheStore interface {
	// Restore copies the entry for the resolved key into the environment's
	// workspace. It reports whether an entry was found.
	Restore(ctx context.Context, spec domain.CacheSpec, env *domain.ExecutionEnvironment) (bool, error)

	// Save persists the spec's paths from the environment's workspace under
	// the resolved key, unless an entry for that key already exists.
	Save(ctx context.Context, spec domain.CacheSpec, env *domain.ExecutionEnvironment) error
}
