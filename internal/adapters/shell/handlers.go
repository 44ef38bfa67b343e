package shell

import (
	"context"
	"io"
	"strings"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// CommandHandler executes shell-command steps.
type CommandHandler struct {
	runner ports.CommandRunner
}

// NewCommandHandler creates a handler for shell-command steps backed by runner.
func NewCommandHandler(runner ports.CommandRunner) *CommandHandler {
	return &CommandHandler{runner: runner}
}

// Execute runs the step's inline command through the system shell, so
// project-local invocations like "make test" behave as they would in a CI
// job's run block.
func (h *CommandHandler) Execute(
	ctx context.Context,
	_ domain.JobSpec,
	step domain.StepSpec,
	env *domain.ExecutionEnvironment,
	stdout, stderr io.Writer,
) error {
	command := step.Params["command"]
	if strings.TrimSpace(command) == "" {
		return zerr.With(domain.ErrStepFailed, "reason", "empty command")
	}

	return h.runner.Run(ctx, []string{"sh", "-ec", command}, env, stdout, stderr)
}

// ToolchainHandler executes toolchain-install steps.
//
// The installer itself is an opaque external collaborator: the handler only
// assembles its invocation from the step parameters and reports its exit
// status. A failed install is fatal for the job, with no retry.
type ToolchainHandler struct {
	runner ports.CommandRunner
}

// NewToolchainHandler creates a handler for toolchain-install steps.
func NewToolchainHandler(runner ports.CommandRunner) *ToolchainHandler {
	return &ToolchainHandler{runner: runner}
}

// Execute installs the toolchain pinned by the step parameters:
// "channel" (required), "profile" (default minimal), "components"
// (comma-separated), and "installer" (default rustup).
func (h *ToolchainHandler) Execute(
	ctx context.Context,
	_ domain.JobSpec,
	step domain.StepSpec,
	env *domain.ExecutionEnvironment,
	stdout, stderr io.Writer,
) error {
	channel := step.Params["channel"]
	if channel == "" {
		return zerr.With(domain.ErrToolchainInstallFailed, "reason", "missing channel parameter")
	}

	installer := step.Params["installer"]
	if installer == "" {
		installer = "rustup"
	}

	profile := step.Params["profile"]
	if profile == "" {
		profile = "minimal"
	}

	command := []string{installer, "toolchain", "install", channel, "--profile", profile}
	for _, component := range splitComponents(step.Params["components"]) {
		command = append(command, "--component", component)
	}

	if err := h.runner.Run(ctx, command, env, stdout, stderr); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrToolchainInstallFailed.Error()), "channel", channel)
	}
	return nil
}

func splitComponents(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			components = append(components, trimmed)
		}
	}
	return components
}
