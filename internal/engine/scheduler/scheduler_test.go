package scheduler

import (
	"context"
	"io"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func shellStep(cmd string) domain.StepSpec {
	return domain.StepSpec{Kind: domain.StepShellCommand, Params: map[string]string{"command": cmd}}
}

func testPipeline(jobs ...domain.JobSpec) *domain.Pipeline {
	return &domain.Pipeline{
		Name: "ci",
		Env:  map[string]string{"CI": "true"},
		Jobs: jobs,
	}
}

// quietRenderer accepts any sequence of render events. Tests that assert on
// events set explicit expectations instead.
func quietRenderer(ctrl *gomock.Controller) *mocks.MockRenderer {
	r := mocks.NewMockRenderer(ctrl)
	r.EXPECT().OnPlanEmit(gomock.Any()).AnyTimes()
	r.EXPECT().OnJobStart(gomock.Any(), gomock.Any()).AnyTimes()
	r.EXPECT().OnStepStart(gomock.Any(), gomock.Any()).AnyTimes()
	r.EXPECT().OnJobLog(gomock.Any(), gomock.Any()).AnyTimes()
	r.EXPECT().OnJobComplete(gomock.Any()).AnyTimes()
	r.EXPECT().OnResult(gomock.Any()).AnyTimes()
	return r
}

func quietLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	l := mocks.NewMockLogger(ctrl)
	l.EXPECT().Info(gomock.Any()).AnyTimes()
	l.EXPECT().Warn(gomock.Any()).AnyTimes()
	l.EXPECT().Error(gomock.Any()).AnyTimes()
	return l
}

func provisioningOK(ctrl *gomock.Controller, times int) *mocks.MockProvisioner {
	p := mocks.NewMockProvisioner(ctrl)
	p.EXPECT().Provision(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job domain.JobSpec, _ map[string]string) (*domain.ExecutionEnvironment, error) {
			return &domain.ExecutionEnvironment{Job: job.Name, Dir: "/tmp/" + job.Name}, nil
		}).Times(times)
	p.EXPECT().Teardown(gomock.Any()).Return(nil).Times(times)
	return p
}

func TestRunAllJobsSucceed(t *testing.T) {
	ctrl := gomock.NewController(t)

	handler := mocks.NewMockStepHandler(ctrl)
	handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).Times(3)

	renderer := mocks.NewMockRenderer(ctrl)
	renderer.EXPECT().OnPlanEmit([]string{"lint", "test"})
	renderer.EXPECT().OnJobStart(gomock.Any(), gomock.Any()).Times(2)
	renderer.EXPECT().OnStepStart(gomock.Any(), gomock.Any()).Times(3)
	renderer.EXPECT().OnJobComplete(gomock.Any()).Times(2)
	renderer.EXPECT().OnResult(gomock.Any())

	s := NewScheduler(
		provisioningOK(ctrl, 2),
		mocks.NewMockCacheStore(ctrl),
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
		renderer,
		quietLogger(ctrl),
	)

	lint := domain.JobSpec{Name: "lint", TimeoutMinutes: 10, Steps: []domain.StepSpec{shellStep("make lint")}}
	test := domain.JobSpec{Name: "test", TimeoutMinutes: 10, Steps: []domain.StepSpec{shellStep("make build"), shellStep("make test")}}

	result := s.Run(context.Background(), testPipeline(lint, test), 2)

	require.Equal(t, domain.PipelineSucceeded, result.Status)
	require.True(t, result.Succeeded())
	require.Len(t, result.Jobs, 2)
	for _, outcome := range result.Jobs {
		require.Equal(t, domain.StatusSucceeded, outcome.Status)
		require.NoError(t, outcome.Err)
	}
	require.Equal(t, domain.StatusSucceeded, s.Status("lint"))
	require.Equal(t, domain.StatusSucceeded, s.Status("test"))
}

func TestRunFailFastSkipsRemainingSteps(t *testing.T) {
	ctrl := gomock.NewController(t)

	boom := zerr.New("command exited non-zero")
	handler := mocks.NewMockStepHandler(ctrl)
	first := handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(boom).After(first)
	// Steps three and four must never run.

	s := NewScheduler(
		provisioningOK(ctrl, 1),
		mocks.NewMockCacheStore(ctrl),
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)

	job := domain.JobSpec{Name: "test", TimeoutMinutes: 10, Steps: []domain.StepSpec{
		shellStep("make generate"),
		shellStep("make build"),
		shellStep("make test"),
		shellStep("make bench"),
	}}

	result := s.Run(context.Background(), testPipeline(job), 1)

	require.Equal(t, domain.PipelineFailed, result.Status)
	outcome := result.Jobs[0]
	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.Equal(t, 2, outcome.StepsRun)
	require.Error(t, outcome.Err)
	require.ErrorContains(t, outcome.Err, domain.ErrStepFailed.Error())
	require.ErrorContains(t, outcome.Err, boom.Error())
}

func TestRunJobFailureDoesNotCancelSiblings(t *testing.T) {
	ctrl := gomock.NewController(t)

	handler := mocks.NewMockStepHandler(ctrl)
	handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, job domain.JobSpec, _ domain.StepSpec, _ *domain.ExecutionEnvironment, _, _ io.Writer) error {
			require.NoError(t, ctx.Err())
			if job.Name == "flaky" {
				return zerr.New("assertion failed")
			}
			return nil
		}).Times(2)

	s := NewScheduler(
		provisioningOK(ctrl, 2),
		mocks.NewMockCacheStore(ctrl),
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)

	flaky := domain.JobSpec{Name: "flaky", TimeoutMinutes: 10, Steps: []domain.StepSpec{shellStep("make flaky")}}
	solid := domain.JobSpec{Name: "solid", TimeoutMinutes: 10, Steps: []domain.StepSpec{shellStep("make solid")}}

	result := s.Run(context.Background(), testPipeline(flaky, solid), 2)

	require.Equal(t, domain.PipelineFailed, result.Status)
	byName := map[string]domain.JobOutcome{}
	for _, o := range result.Jobs {
		byName[o.Job] = o
	}
	require.Equal(t, domain.StatusFailed, byName["flaky"].Status)
	require.Equal(t, domain.StatusSucceeded, byName["solid"].Status)
	require.NoError(t, byName["solid"].Err)
}

func TestRunJobTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)

		handler := mocks.NewMockStepHandler(ctrl)
		handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ domain.JobSpec, _ domain.StepSpec, _ *domain.ExecutionEnvironment, _, _ io.Writer) error {
				<-ctx.Done()
				return ctx.Err()
			})

		s := NewScheduler(
			provisioningOK(ctrl, 1),
			mocks.NewMockCacheStore(ctrl),
			map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
			quietRenderer(ctrl),
			quietLogger(ctrl),
		)

		job := domain.JobSpec{Name: "slow", TimeoutMinutes: 1, Steps: []domain.StepSpec{shellStep("sleep forever")}}

		result := s.Run(context.Background(), testPipeline(job), 1)

		require.Equal(t, domain.PipelineFailed, result.Status)
		outcome := result.Jobs[0]
		require.Equal(t, domain.StatusTimedOut, outcome.Status)
		require.ErrorContains(t, outcome.Err, domain.ErrJobTimedOut.Error())
		require.Equal(t, domain.StatusTimedOut, s.Status("slow"))
	})
}

func TestRunCancellationIsNotTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())

	handler := mocks.NewMockStepHandler(ctrl)
	handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.JobSpec, _ domain.StepSpec, _ *domain.ExecutionEnvironment, _, _ io.Writer) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		})

	s := NewScheduler(
		provisioningOK(ctrl, 1),
		mocks.NewMockCacheStore(ctrl),
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)

	job := domain.JobSpec{Name: "interrupted", TimeoutMinutes: 10, Steps: []domain.StepSpec{shellStep("make test")}}

	result := s.Run(ctx, testPipeline(job), 1)

	require.Equal(t, domain.PipelineFailed, result.Status)
	require.Equal(t, domain.StatusFailed, result.Jobs[0].Status)
}

func TestRunSavesCacheAfterSuccessOnly(t *testing.T) {
	ctrl := gomock.NewController(t)

	handler := mocks.NewMockStepHandler(ctrl)
	handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job domain.JobSpec, _ domain.StepSpec, _ *domain.ExecutionEnvironment, _, _ io.Writer) error {
			if job.Name == "red" {
				return zerr.New("tests failed")
			}
			return nil
		}).Times(2)

	spec := domain.CacheSpec{Key: "cargo-${os}", Paths: []string{"target"}}
	cache := mocks.NewMockCacheStore(ctrl)
	// Only the green job saves.
	cache.EXPECT().Save(gomock.Any(), spec, gomock.Any()).Return(nil).Times(1)

	s := NewScheduler(
		provisioningOK(ctrl, 2),
		cache,
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)

	green := domain.JobSpec{Name: "green", TimeoutMinutes: 10, Cache: &spec, Steps: []domain.StepSpec{shellStep("make test")}}
	red := domain.JobSpec{Name: "red", TimeoutMinutes: 10, Cache: &spec, Steps: []domain.StepSpec{shellStep("make test")}}

	result := s.Run(context.Background(), testPipeline(green, red), 1)
	require.Equal(t, domain.PipelineFailed, result.Status)
}

func TestRunCacheSaveFailureKeepsJobGreen(t *testing.T) {
	ctrl := gomock.NewController(t)

	handler := mocks.NewMockStepHandler(ctrl)
	handler.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(zerr.New("disk full"))

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any())

	spec := domain.CacheSpec{Key: "deps", Paths: []string{"node_modules"}}
	job := domain.JobSpec{Name: "build", TimeoutMinutes: 10, Cache: &spec, Steps: []domain.StepSpec{shellStep("make build")}}

	s := NewScheduler(
		provisioningOK(ctrl, 1),
		cache,
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: handler},
		quietRenderer(ctrl),
		logger,
	)

	result := s.Run(context.Background(), testPipeline(job), 1)

	require.Equal(t, domain.PipelineSucceeded, result.Status)
	require.Equal(t, domain.StatusSucceeded, result.Jobs[0].Status)
}

func TestRunProvisioningFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	provisioner := mocks.NewMockProvisioner(ctrl)
	provisioner.EXPECT().Provision(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, zerr.New("workspace creation failed"))
	// No environment was created, so nothing is torn down and no step runs.

	s := NewScheduler(
		provisioner,
		mocks.NewMockCacheStore(ctrl),
		map[domain.StepKind]ports.StepHandler{domain.StepShellCommand: mocks.NewMockStepHandler(ctrl)},
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)

	job := domain.JobSpec{Name: "build", TimeoutMinutes: 10, Steps: []domain.StepSpec{shellStep("make build")}}

	result := s.Run(context.Background(), testPipeline(job), 1)

	outcome := result.Jobs[0]
	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.Equal(t, 0, outcome.StepsRun)
	require.ErrorContains(t, outcome.Err, domain.ErrProvisioningFailed.Error())
}

func TestRunUnknownStepKind(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := NewScheduler(
		provisioningOK(ctrl, 1),
		mocks.NewMockCacheStore(ctrl),
		map[domain.StepKind]ports.StepHandler{},
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)

	job := domain.JobSpec{Name: "build", TimeoutMinutes: 10, Steps: []domain.StepSpec{
		{Kind: domain.StepKind("mystery"), Name: "mystery step"},
	}}

	result := s.Run(context.Background(), testPipeline(job), 1)

	outcome := result.Jobs[0]
	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.ErrorContains(t, outcome.Err, domain.ErrUnknownStepKind.Error())
}

func TestClassifyStepErrorProvisioningKinds(t *testing.T) {
	cause := zerr.New("rustup not found")

	checkout := classifyStepError(domain.StepSpec{Kind: domain.StepCheckout}, cause)
	require.ErrorContains(t, checkout, domain.ErrProvisioningFailed.Error())

	install := classifyStepError(domain.StepSpec{Kind: domain.StepToolchainInstall}, cause)
	require.ErrorContains(t, install, domain.ErrProvisioningFailed.Error())

	run := classifyStepError(shellStep("make test"), cause)
	require.ErrorContains(t, run, domain.ErrStepFailed.Error())
	require.NotContains(t, run.Error(), domain.ErrProvisioningFailed.Error())
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []domain.JobStatus
		want     domain.PipelineStatus
	}{
		{"all green", []domain.JobStatus{domain.StatusSucceeded, domain.StatusSucceeded}, domain.PipelineSucceeded},
		{"one failed", []domain.JobStatus{domain.StatusSucceeded, domain.StatusFailed}, domain.PipelineFailed},
		{"one timed out", []domain.JobStatus{domain.StatusTimedOut, domain.StatusSucceeded}, domain.PipelineFailed},
		{"no jobs", nil, domain.PipelineSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := make([]domain.JobOutcome, len(tt.statuses))
			for i, status := range tt.statuses {
				outcomes[i] = domain.JobOutcome{Job: "j", Status: status}
			}
			require.Equal(t, tt.want, Aggregate(outcomes).Status)
		})
	}
}

func TestStatusUnknownJobIsPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewScheduler(
		mocks.NewMockProvisioner(ctrl),
		mocks.NewMockCacheStore(ctrl),
		nil,
		quietRenderer(ctrl),
		quietLogger(ctrl),
	)
	require.Equal(t, domain.StatusPending, s.Status("nope"))
}
