package workspace

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// skipDirectories are repository directories never copied into a workspace.
var skipDirectories = map[string]bool{
	".git":               true,
	".jj":                true,
	domain.GantryDirName: true,
}

// CheckoutHandler executes checkout steps by placing a fresh copy of the
// repository worktree into the job workspace. The version-control system
// itself stays an external collaborator: the handler copies the worktree as
// it stands for the triggering revision.
type CheckoutHandler struct {
	repoRoot string
	logger   ports.Logger
}

// NewCheckoutHandler creates a checkout handler rooted at the repository root.
func NewCheckoutHandler(repoRoot string, logger ports.Logger) *CheckoutHandler {
	return &CheckoutHandler{repoRoot: repoRoot, logger: logger}
}

// Execute copies the worktree into env.Dir.
func (h *CheckoutHandler) Execute(
	ctx context.Context,
	_ domain.JobSpec,
	_ domain.StepSpec,
	env *domain.ExecutionEnvironment,
	_, _ io.Writer,
) error {
	if err := copyTree(ctx, h.repoRoot, env.Dir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCheckoutFailed.Error()), "job", env.Job)
	}
	return nil
}

// copyTree copies src into dst, skipping VCS and orchestrator metadata.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skipDirectories[d.Name()] {
				return fs.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), domain.DirPerm)
		}

		if !d.Type().IsRegular() {
			// Sockets, devices and symlinks are not part of a checkout.
			return nil
		}

		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(src, dst string) error {
	//nolint:gosec // both paths derive from the validated repository root
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	//nolint:gosec // dst is inside the freshly created workspace
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
