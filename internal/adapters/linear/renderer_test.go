package linear_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.trai.ch/gantry/internal/adapters/linear"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestRenderer_JobLifecycle(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r.OnPlanEmit([]string{"lint", "test"})
	if !strings.Contains(stderr.String(), "Running 2 job(s): lint test") {
		t.Errorf("Expected plan message in stderr, got: %s", stderr.String())
	}

	startTime := time.Now()
	r.OnJobStart("lint", startTime)
	if !strings.Contains(stderr.String(), "[lint]") {
		t.Errorf("Expected job start message, got: %s", stderr.String())
	}

	r.OnStepStart("lint", "cargo fmt --check")
	if !strings.Contains(stderr.String(), "cargo fmt --check") {
		t.Errorf("Expected step start message, got: %s", stderr.String())
	}

	r.OnJobLog("lint", []byte("first line\n"))
	r.OnJobLog("lint", []byte("second line\n"))

	stdoutStr := stdout.String()
	if !strings.Contains(stdoutStr, "[lint] first line") {
		t.Errorf("Expected prefixed first line in stdout, got: %s", stdoutStr)
	}
	if !strings.Contains(stdoutStr, "[lint] second line") {
		t.Errorf("Expected prefixed second line in stdout, got: %s", stdoutStr)
	}

	r.OnJobComplete(domain.JobOutcome{
		Job:       "lint",
		Status:    domain.StatusSucceeded,
		StartTime: startTime,
		EndTime:   startTime.Add(100 * time.Millisecond),
	})
	if !strings.Contains(stderr.String(), "Succeeded") {
		t.Errorf("Expected completion message, got: %s", stderr.String())
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestRenderer_PartialLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	startTime := time.Now()
	r.OnJobStart("build", startTime)

	r.OnJobLog("build", []byte("partial"))
	if strings.Contains(stdout.String(), "partial") {
		t.Errorf("Partial line should not be printed immediately")
	}

	r.OnJobLog("build", []byte(" line\n"))
	if !strings.Contains(stdout.String(), "[build] partial line") {
		t.Errorf("Expected complete line, got: %s", stdout.String())
	}

	// A trailing partial line is flushed on completion.
	r.OnJobLog("build", []byte("unflushed"))
	r.OnJobComplete(domain.JobOutcome{
		Job:       "build",
		Status:    domain.StatusSucceeded,
		StartTime: startTime,
		EndTime:   startTime.Add(50 * time.Millisecond),
	})
	if !strings.Contains(stdout.String(), "[build] unflushed") {
		t.Errorf("Expected flushed partial line on complete, got: %s", stdout.String())
	}
}

func TestRenderer_JobFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	startTime := time.Now()
	r.OnJobStart("test", startTime)
	r.OnJobLog("test", []byte("error output\n"))

	r.OnJobComplete(domain.JobOutcome{
		Job:       "test",
		Status:    domain.StatusFailed,
		Err:       zerr.New("step execution failed"),
		StartTime: startTime,
		EndTime:   startTime.Add(50 * time.Millisecond),
	})

	stderrStr := stderr.String()
	if !strings.Contains(stderrStr, "Failed") {
		t.Errorf("Expected failure message, got: %s", stderrStr)
	}
	if !strings.Contains(stderrStr, "step execution failed") {
		t.Errorf("Expected error message, got: %s", stderrStr)
	}
}

func TestRenderer_JobTimeout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	startTime := time.Now()
	r.OnJobStart("slow", startTime)
	r.OnJobComplete(domain.JobOutcome{
		Job:       "slow",
		Status:    domain.StatusTimedOut,
		Err:       zerr.New("job timed out"),
		StartTime: startTime,
		EndTime:   startTime.Add(time.Minute),
	})

	if !strings.Contains(stderr.String(), "Timed out") {
		t.Errorf("Expected timeout message, got: %s", stderr.String())
	}
}

func TestRenderer_ConcurrentJobs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	startTime := time.Now()
	r.OnJobStart("lint", startTime)
	r.OnJobStart("test", startTime)

	// Interleaved logs stay attributed to their job.
	r.OnJobLog("lint", []byte("lint line 1\n"))
	r.OnJobLog("test", []byte("test line 1\n"))
	r.OnJobLog("lint", []byte("lint line 2\n"))
	r.OnJobLog("test", []byte("test line 2\n"))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	expectedPrefixes := map[string]int{
		"[lint]": 2,
		"[test]": 2,
	}
	for _, line := range lines {
		for prefix := range expectedPrefixes {
			if strings.HasPrefix(line, prefix) {
				expectedPrefixes[prefix]--
			}
		}
	}
	for prefix, count := range expectedPrefixes {
		if count != 0 {
			t.Errorf("Expected prefix %s on exactly two lines, remaining: %d", prefix, count)
		}
	}
}

func TestRenderer_Summary(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	start := time.Now()
	r.OnResult(domain.PipelineResult{
		Status: domain.PipelineFailed,
		Jobs: []domain.JobOutcome{
			{Job: "lint", Status: domain.StatusSucceeded, StartTime: start, EndTime: start.Add(2 * time.Second)},
			{Job: "test", Status: domain.StatusFailed, Err: zerr.New("boom"), StartTime: start, EndTime: start.Add(5 * time.Second)},
		},
	})

	stderrStr := stderr.String()
	if !strings.Contains(stderrStr, "lint") || !strings.Contains(stderrStr, "succeeded") {
		t.Errorf("Expected lint summary line, got: %s", stderrStr)
	}
	if !strings.Contains(stderrStr, "test") || !strings.Contains(stderrStr, "failed") {
		t.Errorf("Expected test summary line, got: %s", stderrStr)
	}
	if !strings.Contains(stderrStr, "Pipeline failed") {
		t.Errorf("Expected pipeline verdict, got: %s", stderrStr)
	}
}

func TestRenderer_SummaryAllGreen(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	start := time.Now()
	r.OnResult(domain.PipelineResult{
		Status: domain.PipelineSucceeded,
		Jobs: []domain.JobOutcome{
			{Job: "lint", Status: domain.StatusSucceeded, StartTime: start, EndTime: start.Add(time.Second)},
		},
	})

	if !strings.Contains(stderr.String(), "Pipeline succeeded") {
		t.Errorf("Expected success verdict, got: %s", stderr.String())
	}
}

func TestRenderer_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "")

	startTime := time.Now()
	r.OnJobStart("lint", startTime)
	r.OnJobComplete(domain.JobOutcome{
		Job:       "lint",
		Status:    domain.StatusSucceeded,
		StartTime: startTime,
		EndTime:   startTime.Add(50 * time.Millisecond),
	})

	if strings.Contains(stderr.String(), "\x1b[") {
		t.Errorf("Expected no ANSI codes with NO_COLOR, got: %s", stderr.String())
	}
}

func TestRenderer_UnknownJobIgnored(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	r.OnJobLog("ghost", []byte("should be ignored\n"))
	if stdout.Len() != 0 {
		t.Errorf("Expected no output for unknown job, got: %s", stdout.String())
	}

	r.OnJobComplete(domain.JobOutcome{Job: "ghost", Status: domain.StatusSucceeded})
	if stderr.Len() != 0 {
		t.Errorf("Expected no output for unknown job completion, got: %s", stderr.String())
	}
}

func TestRenderer_EmptyLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	r.OnJobStart("lint", time.Now())
	r.OnJobLog("lint", []byte("\n"))
	r.OnJobLog("lint", []byte("\r\n"))

	if strings.Contains(stdout.String(), "[lint]") {
		t.Errorf("Expected no output for empty lines, got: %s", stdout.String())
	}
}

func TestRenderer_StopFlushesBuffers(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	startTime := time.Now()
	r.OnJobStart("lint", startTime)
	r.OnJobStart("test", startTime)

	r.OnJobLog("lint", []byte("partial1"))
	r.OnJobLog("test", []byte("partial2"))

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stdoutStr := stdout.String()
	if !strings.Contains(stdoutStr, "partial1") {
		t.Errorf("Expected flushed partial1, got: %s", stdoutStr)
	}
	if !strings.Contains(stdoutStr, "partial2") {
		t.Errorf("Expected flushed partial2, got: %s", stdoutStr)
	}
}

func TestRenderer_Wait(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, "never")

	if err := r.Wait(); err != nil {
		t.Errorf("Wait() should not error, got: %v", err)
	}
}

func TestRenderer_NilWriters(_ *testing.T) {
	r := linear.NewRenderer(nil, nil, "never")

	startTime := time.Now()
	r.OnJobStart("lint", startTime)
	r.OnJobLog("lint", []byte("test\n"))
	r.OnJobComplete(domain.JobOutcome{
		Job:       "lint",
		Status:    domain.StatusSucceeded,
		StartTime: startTime,
		EndTime:   startTime.Add(time.Second),
	})
}
