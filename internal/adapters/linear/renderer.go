// Package linear provides a synchronous, line-buffered renderer for CI
// environments. It prints chronological, job-prefixed logs and a final run
// summary instead of redrawing the screen.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/ui/output"
	"go.trai.ch/gantry/internal/ui/style"
)

// Renderer implements ports.Renderer for non-interactive runs.
//
// Job output goes to stdout prefixed with the job name; lifecycle messages
// and the summary go to stderr, so piping stdout still yields clean logs.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	out    *termenv.Output

	mu      sync.Mutex
	jobs    map[string]*jobState
	buffers map[string]*bytes.Buffer
}

type jobState struct {
	startTime time.Time
}

// NewRenderer creates a Renderer. Nil writers default to the process
// streams. colorToggle carries the pipeline-level color setting.
func NewRenderer(stdout, stderr io.Writer, colorToggle string) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		out:     output.New(stderr, colorToggle),
		jobs:    make(map[string]*jobState),
		buffers: make(map[string]*bytes.Buffer),
	}
}

// Start is a no-op; the renderer is synchronous.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining job buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for job := range r.buffers {
		r.flushBufferLocked(job)
	}
	return nil
}

// Wait is a no-op; the renderer is synchronous.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the expanded job plan in declared order.
func (r *Renderer) OnPlanEmit(jobs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.stderr, "Running %d job(s):", len(jobs))
	for _, job := range jobs {
		_, _ = fmt.Fprintf(r.stderr, " %s", job)
	}
	_, _ = fmt.Fprintln(r.stderr)
}

// OnJobStart prints a start message and begins buffering the job's output.
func (r *Renderer) OnJobStart(job string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job] = &jobState{startTime: startTime}
	r.buffers[job] = new(bytes.Buffer)

	prefix := r.out.String(fmt.Sprintf("[%s]", job)).Faint().String()
	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", prefix)
}

// OnStepStart prints the step about to run.
func (r *Renderer) OnStepStart(job, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job]; !ok {
		return
	}
	prefix := r.out.String(fmt.Sprintf("[%s]", job)).Faint().String()
	_, _ = fmt.Fprintf(r.stderr, "%s %s %s\n", prefix, style.Dot, step)
}

// OnJobLog buffers raw output and prints complete lines with the job prefix.
func (r *Renderer) OnJobLog(job string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job]; !ok {
		return
	}

	buf := r.buffers[job]
	buf.Write(data)

	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, carry it over.
			if len(line) > 0 {
				carry := new(bytes.Buffer)
				carry.Write(line)
				r.buffers[job] = carry
			}
			break
		}
		r.printLineLocked(job, line)
	}
}

// OnJobComplete flushes the job's buffer and prints its terminal status.
func (r *Renderer) OnJobComplete(outcome domain.JobOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[outcome.Job]; !ok {
		return
	}
	r.flushBufferLocked(outcome.Job)

	prefix := fmt.Sprintf("[%s]", outcome.Job)
	duration := outcome.Duration().Round(time.Millisecond)

	switch outcome.Status {
	case domain.StatusSucceeded:
		symbol := r.out.String(style.Check).Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Succeeded in %v\n", prefix, symbol, duration)
	case domain.StatusTimedOut:
		symbol := r.out.String(style.Clock).Foreground(termenv.ANSIYellow).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Timed out after %v\n", prefix, symbol, duration)
	default:
		symbol := r.out.String(style.Cross).Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n", prefix, symbol, duration, outcome.Err)
	}

	delete(r.jobs, outcome.Job)
	delete(r.buffers, outcome.Job)
}

// OnResult prints the run summary.
func (r *Renderer) OnResult(result domain.PipelineResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintln(r.stderr)
	for _, outcome := range result.Jobs {
		_, _ = fmt.Fprintf(r.stderr, "  %s\n", summaryLine(outcome))
	}

	if result.Succeeded() {
		_, _ = fmt.Fprintf(r.stderr, "\nPipeline %s\n", style.SucceededStyle.Render("succeeded"))
	} else {
		_, _ = fmt.Fprintf(r.stderr, "\nPipeline %s\n", style.FailedStyle.Render("failed"))
	}
}

func summaryLine(outcome domain.JobOutcome) string {
	duration := outcome.Duration().Round(time.Millisecond)
	switch outcome.Status {
	case domain.StatusSucceeded:
		return fmt.Sprintf("%s %-20s succeeded  %v",
			style.SucceededStyle.Render(style.Check), outcome.Job, duration)
	case domain.StatusTimedOut:
		return fmt.Sprintf("%s %-20s timed out  %v",
			style.TimedOutStyle.Render(style.Clock), outcome.Job, duration)
	default:
		return fmt.Sprintf("%s %-20s failed     %v",
			style.FailedStyle.Render(style.Cross), outcome.Job, duration)
	}
}

// flushBufferLocked prints any remaining partial line for a job.
// Must be called with r.mu held.
func (r *Renderer) flushBufferLocked(job string) {
	buf, ok := r.buffers[job]
	if !ok {
		return
	}
	if buf.Len() > 0 {
		r.printLineLocked(job, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked prints a line with the job name prefix.
// Must be called with r.mu held.
func (r *Renderer) printLineLocked(job string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", job, string(line))
}
