// Package app implements the application layer for gantry.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"go.trai.ch/gantry/internal/adapters/cache"
	"go.trai.ch/gantry/internal/adapters/linear"
	"go.trai.ch/gantry/internal/adapters/shell"
	"go.trai.ch/gantry/internal/adapters/watcher"
	"go.trai.ch/gantry/internal/adapters/workspace"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/engine/scheduler"
	"go.trai.ch/gantry/internal/engine/trigger"
	"go.trai.ch/gantry/internal/server"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	runner       ports.CommandRunner
	fsWatcher    ports.Watcher
	logger       ports.Logger
	stdout       io.Writer
	stderr       io.Writer
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, runner ports.CommandRunner, fsWatcher ports.Watcher, log ports.Logger) *App {
	return &App{
		configLoader: loader,
		runner:       runner,
		fsWatcher:    fsWatcher,
		logger:       log,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

// WithOutput redirects renderer output. This is primarily used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	EventType    string
	Branch       string
	Commit       string
	ChangedPaths []string
	Parallelism  int
	Watch        bool
	Color        string
}

// Run evaluates the trigger for the described event and, on a match,
// executes the pipeline. With Watch set it keeps re-running on file changes
// until the context is cancelled.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if opts.EventType == "" {
		opts.EventType = string(domain.EventPush)
	}
	eventType := domain.EventType(opts.EventType)
	if !domain.KnownEventType(eventType) {
		return zerr.With(domain.ErrUnknownEventType, "type", opts.EventType)
	}

	root, err := a.configLoader.Discover(".")
	if err != nil {
		return zerr.Wrap(err, "failed to locate pipeline configuration")
	}

	pipeline, err := a.configLoader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load pipeline configuration")
	}

	event := domain.Event{
		Type:         eventType,
		Branch:       opts.Branch,
		Commit:       opts.Commit,
		ChangedPaths: opts.ChangedPaths,
	}

	matched, err := trigger.Matches(event, pipeline.Trigger)
	if err != nil {
		return err
	}

	if !matched {
		a.logger.Info(fmt.Sprintf("event %s on %q does not match the trigger, nothing to run", event.Type, event.Branch))
		if !opts.Watch {
			return nil
		}
	} else {
		result, err := a.executeOnce(ctx, root, pipeline, opts)
		if err != nil {
			return err
		}
		if !result.Succeeded() && !opts.Watch {
			return domain.ErrPipelineFailed
		}
	}

	if opts.Watch {
		return a.watch(ctx, root, opts)
	}
	return nil
}

// Serve runs the webhook server on addr until ctx is cancelled.
func (a *App) Serve(ctx context.Context, addr string) error {
	root, err := a.configLoader.Discover(".")
	if err != nil {
		return zerr.Wrap(err, "failed to locate pipeline configuration")
	}

	srv := server.NewServer(root, a.configLoader, &serverRunner{app: a, root: root}, a.logger)
	return srv.ListenAndServe(ctx, addr)
}

// serverRunner adapts App's single-run execution to the webhook server.
type serverRunner struct {
	app  *App
	root string
}

func (r *serverRunner) Execute(ctx context.Context, pipeline *domain.Pipeline, _ domain.Event) domain.PipelineResult {
	result, err := r.app.executeOnce(ctx, r.root, pipeline, RunOptions{Color: "never"})
	if err != nil {
		r.app.logger.Error(err)
	}
	return result
}

// executeOnce wires a scheduler for one pipeline run and executes it. The
// provisioner, cache store and step handlers are rebuilt per run because they
// are anchored at the discovered repository root.
func (a *App) executeOnce(ctx context.Context, root string, pipeline *domain.Pipeline, opts RunOptions) (domain.PipelineResult, error) {
	renderer := linear.NewRenderer(a.stdout, a.stderr, opts.Color)
	provisioner := workspace.NewProvisioner(root, a.logger)
	store := cache.NewStore(filepath.Join(root, domain.DefaultCachePath()), a.logger)

	handlers := map[domain.StepKind]ports.StepHandler{
		domain.StepCheckout:         workspace.NewCheckoutHandler(root, a.logger),
		domain.StepCacheRestore:     cache.NewRestoreHandler(store),
		domain.StepShellCommand:     shell.NewCommandHandler(a.runner),
		domain.StepToolchainInstall: shell.NewToolchainHandler(a.runner),
	}

	sched := scheduler.NewScheduler(provisioner, store, handlers, renderer, a.logger)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	var result domain.PipelineResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()
		result = sched.Run(gctx, pipeline, parallelism)
		return nil
	})

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// watch re-runs the pipeline on debounced file change batches. Each batch
// becomes a synthetic push event whose changed paths go through the trigger,
// so paths-ignore rules apply to watch mode too.
func (a *App) watch(ctx context.Context, root string, opts RunOptions) error {
	batches := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})

	if err := a.fsWatcher.Start(ctx, root); err != nil {
		return zerr.Wrap(err, "failed to start file watcher")
	}
	defer func() {
		_ = a.fsWatcher.Stop()
	}()

	go func() {
		for event := range a.fsWatcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	a.logger.Info("watching for changes, press ctrl-c to stop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-batches:
			event := domain.Event{
				Type:         domain.EventPush,
				Branch:       opts.Branch,
				ChangedPaths: relativize(root, paths),
			}

			// Reload so edits to the pipeline file itself take effect.
			pipeline, err := a.configLoader.Load(".")
			if err != nil {
				a.logger.Error(err)
				continue
			}

			matched, err := trigger.Matches(event, pipeline.Trigger)
			if err != nil {
				a.logger.Error(err)
				continue
			}
			if !matched {
				a.logger.Info("change batch ignored by trigger rules")
				continue
			}

			if _, err := a.executeOnce(ctx, root, pipeline, opts); err != nil {
				a.logger.Error(err)
			}
		}
	}
}

func relativize(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(root, p); err == nil {
			out = append(out, rel)
		} else {
			out = append(out, p)
		}
	}
	return out
}
