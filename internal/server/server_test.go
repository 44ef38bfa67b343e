package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports/mocks"
	"go.trai.ch/gantry/internal/server"
	"go.uber.org/mock/gomock"
)

// stubRunner returns a canned result and signals when the run completed.
type stubRunner struct {
	mu     sync.Mutex
	result domain.PipelineResult
	events []domain.Event
	done   chan struct{}
}

func newStubRunner(result domain.PipelineResult) *stubRunner {
	return &stubRunner{result: result, done: make(chan struct{}, 8)}
}

func (r *stubRunner) Execute(_ context.Context, _ *domain.Pipeline, event domain.Event) domain.PipelineResult {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.result
}

func (r *stubRunner) waitForRun(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not complete")
	}
}

func ciPipeline() *domain.Pipeline {
	return &domain.Pipeline{
		Name: "ci",
		Trigger: domain.TriggerRule{
			Events:      []domain.EventType{domain.EventPush},
			Branches:    []string{"main"},
			PathsIgnore: []string{"**/*.md"},
		},
		Jobs: []domain.JobSpec{
			{Name: "test", TimeoutMinutes: 10},
		},
	}
}

func quietLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	l := mocks.NewMockLogger(ctrl)
	l.EXPECT().Info(gomock.Any()).AnyTimes()
	l.EXPECT().Warn(gomock.Any()).AnyTimes()
	l.EXPECT().Error(gomock.Any()).AnyTimes()
	return l
}

func postEvent(t *testing.T, ts *httptest.Server, payload map[string]any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServerHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := server.NewServer(t.TempDir(), mocks.NewMockConfigLoader(ctrl), newStubRunner(domain.PipelineResult{}), quietLogger(ctrl))
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestServerEventStartsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(root).Return(ciPipeline(), nil)

	runner := newStubRunner(domain.PipelineResult{
		Status: domain.PipelineSucceeded,
		Jobs: []domain.JobOutcome{
			{Job: "test", Status: domain.StatusSucceeded, StepsRun: 2},
		},
	})

	s := server.NewServer(root, loader, runner, quietLogger(ctrl))
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp := postEvent(t, ts, map[string]any{
		"type":          "push",
		"branch":        "main",
		"commit":        "abc123",
		"changed_paths": []string{"src/lib.rs"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	accepted := decodeBody[map[string]string](t, resp)
	require.Equal(t, "running", accepted["status"])
	require.NotEmpty(t, accepted["id"])

	runner.waitForRun(t)
	require.Len(t, runner.events, 1)
	assert.Equal(t, domain.EventPush, runner.events[0].Type)
	assert.Equal(t, "main", runner.events[0].Branch)

	// Poll until the run record reflects the finished result.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/runs/" + accepted["id"])
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		run := decodeBody[map[string]any](t, resp)
		if run["status"] == "succeeded" {
			jobs := run["jobs"].([]any)
			require.Len(t, jobs, 1)
			job := jobs[0].(map[string]any)
			assert.Equal(t, "test", job["name"])
			assert.Equal(t, "Succeeded", job["status"])
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never finished, last status: %v", run["status"])
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerEventNoMatchingTrigger(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(root).Return(ciPipeline(), nil).Times(2)

	runner := newStubRunner(domain.PipelineResult{})
	s := server.NewServer(root, loader, runner, quietLogger(ctrl))
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	// Wrong branch.
	resp := postEvent(t, ts, map[string]any{"type": "push", "branch": "feature/x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "skipped", body["status"])

	// Docs-only change set.
	resp = postEvent(t, ts, map[string]any{
		"type":          "push",
		"branch":        "main",
		"changed_paths": []string{"README.md", "docs/guide.md"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody[map[string]string](t, resp)
	assert.Equal(t, "skipped", body["status"])

	assert.Empty(t, runner.events)
}

func TestServerEventValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := server.NewServer(t.TempDir(), mocks.NewMockConfigLoader(ctrl), newStubRunner(domain.PipelineResult{}), quietLogger(ctrl))
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/events", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postEvent(t, ts, map[string]any{"type": "tag", "branch": "main"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Contains(t, body["error"], "unknown event type")
}

func TestServerRunNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := server.NewServer(t.TempDir(), mocks.NewMockConfigLoader(ctrl), newStubRunner(domain.PipelineResult{}), quietLogger(ctrl))
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/run-99")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestServerListRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(root).Return(ciPipeline(), nil).Times(2)

	runner := newStubRunner(domain.PipelineResult{
		Status: domain.PipelineFailed,
		Jobs:   []domain.JobOutcome{{Job: "test", Status: domain.StatusFailed}},
	})

	s := server.NewServer(root, loader, runner, quietLogger(ctrl))
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	for range 2 {
		resp := postEvent(t, ts, map[string]any{"type": "push", "branch": "main"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		_ = resp.Body.Close()
		runner.waitForRun(t)
	}

	resp, err := http.Get(ts.URL + "/runs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	runs := decodeBody[[]map[string]any](t, resp)
	require.Len(t, runs, 2)
}

func TestServerConfigLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(root).Return(nil, domain.ErrConfigNotFound)

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Error(gomock.Any())

	s := server.NewServer(root, loader, newStubRunner(domain.PipelineResult{}), logger)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp := postEvent(t, ts, map[string]any{"type": "push", "branch": "main"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	_ = resp.Body.Close()
}
