// Package shell runs pipeline step commands as child processes.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// Runner implements ports.CommandRunner using os/exec.
//
// Commands run with plain pipes, not a pty: CI step output must keep stdout
// and stderr separated, and a pty would merge them.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a new Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes command inside the environment's workspace and waits for it.
// The child inherits the environment's merged variables and nothing else.
// A non-zero exit is returned as an error carrying the exit code.
func (r *Runner) Run(
	ctx context.Context,
	command []string,
	env *domain.ExecutionEnvironment,
	stdout, stderr io.Writer,
) error {
	if len(command) == 0 {
		return nil
	}

	stdoutLog := &logWriter{logger: r.logger, level: "info"}
	stderrLog := &logWriter{logger: r.logger, level: "error"}
	defer func() {
		_ = stdoutLog.Close()
		_ = stderrLog.Close()
	}()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec // user provided command
	setProcessGroup(cmd)
	cmd.Dir = env.Dir
	cmd.Env = env.Env
	cmd.Stdout = io.MultiWriter(stdoutLog, stdout)
	cmd.Stderr = io.MultiWriter(stderrLog, stderr)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// The kill came from timeout or cancellation, not the command.
			return ctx.Err()
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.Wrap(err, "command exited non-zero"), "exit_code", exitCode)
	}

	return nil
}

// logWriter forwards complete output lines to the structured logger while the
// raw bytes stream to the renderer.
type logWriter struct {
	logger ports.Logger
	level  string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	if w.level == "info" {
		w.logger.Info(msg)
	} else {
		w.logger.Error(zerr.New(msg))
	}
}
