// Package cache implements the keyed filesystem cache store.
//
// Entries are immutable by key. The resolved key is the runner OS identifier
// substituted into the configured key string; it deliberately carries no
// dependency-hash component, so an entry can serve stale artifacts until the
// key string itself changes. That coarseness is configured behavior, not
// something the store second-guesses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.CacheStore on the local filesystem.
type Store struct {
	baseDir string
	logger  ports.Logger
}

// manifest records what an entry holds so Restore can place paths back.
type manifest struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	Paths     []string  `json:"paths"`
}

const manifestName = "manifest.json"

// NewStore creates a cache store rooted at baseDir.
func NewStore(baseDir string, logger ports.Logger) *Store {
	return &Store{baseDir: baseDir, logger: logger}
}

// ResolveKey expands the ${os} placeholder in key. An empty key resolves to
// the bare OS identifier.
func ResolveKey(key string) string {
	resolved := strings.ReplaceAll(key, "${os}", domain.RunnerOS())
	if resolved == "" {
		resolved = domain.RunnerOS()
	}
	return resolved
}

// Restore copies the entry for the spec's resolved key into the workspace.
// It reports false without error when no entry exists.
func (s *Store) Restore(ctx context.Context, spec domain.CacheSpec, env *domain.ExecutionEnvironment) (bool, error) {
	key := ResolveKey(spec.Key)
	entryDir := s.entryDir(key)

	data, err := os.ReadFile(filepath.Join(entryDir, manifestName)) //nolint:gosec // path derives from the hashed key
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, zerr.Wrap(err, domain.ErrCacheRestoreFailed.Error())
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return false, zerr.Wrap(err, domain.ErrCacheRestoreFailed.Error())
	}

	for i, rel := range m.Paths {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		src := filepath.Join(entryDir, "paths", fmt.Sprintf("%d", i))
		dst, err := resolvePath(env, rel)
		if err != nil {
			return false, err
		}
		if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
			// Path was empty at save time.
			continue
		}
		if err := copyDir(src, dst); err != nil {
			return false, zerr.With(zerr.Wrap(err, domain.ErrCacheRestoreFailed.Error()), "path", rel)
		}
	}

	s.logger.Info("cache restored key=" + key)
	return true, nil
}

// Save persists the spec's paths under the resolved key unless an entry
// already exists: first writer wins, concurrent savers lose quietly, and an
// existing entry is never mutated.
func (s *Store) Save(ctx context.Context, spec domain.CacheSpec, env *domain.ExecutionEnvironment) error {
	key := ResolveKey(spec.Key)
	entryDir := s.entryDir(key)

	if _, err := os.Stat(entryDir); err == nil {
		s.logger.Info("cache entry exists, skipping save key=" + key)
		return nil
	}

	if err := os.MkdirAll(s.baseDir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheCreateFailed.Error())
	}

	// Stage into a temp dir and rename so a concurrent saver can never
	// observe a half-written entry.
	staging, err := os.MkdirTemp(s.baseDir, "staging-")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheSaveFailed.Error())
	}
	defer func() { _ = os.RemoveAll(staging) }()

	for i, rel := range spec.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := resolvePath(env, rel)
		if err != nil {
			return err
		}
		if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		dst := filepath.Join(staging, "paths", fmt.Sprintf("%d", i))
		if err := copyDir(src, dst); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrCacheSaveFailed.Error()), "path", rel)
		}
	}

	m := manifest{Key: key, CreatedAt: time.Now().UTC(), Paths: spec.Paths}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheSaveFailed.Error())
	}
	if err := os.WriteFile(filepath.Join(staging, manifestName), data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheSaveFailed.Error())
	}

	if err := os.Rename(staging, entryDir); err != nil {
		if _, statErr := os.Stat(entryDir); statErr == nil {
			// Lost the race; the winner's entry stands.
			s.logger.Info("cache entry exists, skipping save key=" + key)
			return nil
		}
		return zerr.Wrap(err, domain.ErrCacheSaveFailed.Error())
	}

	s.logger.Info("cache saved key=" + key)
	return nil
}

// entryDir addresses an entry by the xxhash of its resolved key, keeping
// directory names filesystem-safe regardless of key contents.
func (s *Store) entryDir(resolvedKey string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%016x", xxhash.Sum64String(resolvedKey)))
}

// resolvePath maps a configured cache path onto the execution environment.
// Relative paths are workspace-relative; a leading "~/" resolves against the
// environment's HOME.
func resolvePath(env *domain.ExecutionEnvironment, rel string) (string, error) {
	if strings.HasPrefix(rel, "~/") {
		home, ok := env.LookupEnv("HOME")
		if !ok {
			return "", zerr.With(domain.ErrCacheRestoreFailed, "reason", "no HOME for "+rel)
		}
		return filepath.Join(home, rel[2:]), nil
	}
	if filepath.IsAbs(rel) {
		return rel, nil
	}
	return filepath.Join(env.Dir, rel), nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, domain.DirPerm)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	//nolint:gosec // paths derive from the store layout and validated specs
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}

	//nolint:gosec // dst is inside the store or the workspace
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
