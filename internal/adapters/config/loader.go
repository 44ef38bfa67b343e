// Package config provides the pipeline configuration loader for gantry.
package config

import (
	"os"
	"path/filepath"
	"regexp"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/engine/trigger"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

var validJobNameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// defaultTimeoutMinutes applies when a job declares no timeout, mirroring
// hosted runner defaults.
const defaultTimeoutMinutes = 360

// Load reads the pipeline file discovered from cwd and expands it into a
// validated domain.Pipeline. Expansion is a deterministic, pure transform of
// the file contents: jobs keep their declared order, steps keep theirs.
func (l *Loader) Load(cwd string) (*domain.Pipeline, error) {
	root, err := l.Discover(cwd)
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(root, domain.PipelineFileName)
	//nolint:gosec // path is rooted at the discovered repository root
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", configPath)
	}

	return l.Parse(data)
}

// Parse expands raw pipeline file contents. It is split from Load so the
// webhook server can accept pipeline definitions without touching disk.
func (l *Loader) Parse(data []byte) (*domain.Pipeline, error) {
	var file PipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}

	rule, err := expandTrigger(file.On)
	if err != nil {
		return nil, err
	}

	jobs, err := l.expandJobs(&file.Jobs)
	if err != nil {
		return nil, err
	}

	return &domain.Pipeline{
		Name:    file.Name,
		Trigger: rule,
		Env:     file.Env,
		Jobs:    jobs,
	}, nil
}

// Discover walks up from cwd to find the directory holding the pipeline file.
func (l *Loader) Discover(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.PipelineFileName)
		if _, err := os.Stat(candidate); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func expandTrigger(dto TriggerDTO) (domain.TriggerRule, error) {
	rule := domain.TriggerRule{
		Branches:    dto.Branches,
		PathsIgnore: dto.PathsIgnore,
	}
	for _, e := range dto.Events {
		rule.Events = append(rule.Events, domain.EventType(e))
	}

	if err := trigger.ValidateRule(rule); err != nil {
		return domain.TriggerRule{}, err
	}
	return rule, nil
}

// expandJobs walks the raw jobs mapping node in document order. Using the
// node instead of a decoded map preserves the declared job sequence, which
// the renderer and the result listing both rely on.
func (l *Loader) expandJobs(node *yaml.Node) ([]domain.JobSpec, error) {
	if node.Kind == 0 || len(node.Content) == 0 {
		return nil, domain.ErrNoJobsDefined
	}
	if node.Kind != yaml.MappingNode {
		return nil, zerr.With(domain.ErrConfigParseFailed, "reason", "jobs must be a mapping")
	}

	seen := make(map[string]bool, len(node.Content)/2)
	jobs := make([]domain.JobSpec, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		if !validJobNameRegex.MatchString(name) {
			return nil, zerr.With(domain.ErrInvalidJobName, "job", name)
		}
		if seen[name] {
			return nil, zerr.With(domain.ErrDuplicateJobName, "job", name)
		}
		seen[name] = true

		var dto JobDTO
		if err := node.Content[i+1].Decode(&dto); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "job", name)
		}

		job, err := expandJob(name, dto)
		if err != nil {
			return nil, zerr.With(err, "job", name)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func expandJob(name string, dto JobDTO) (domain.JobSpec, error) {
	timeout := dto.TimeoutMinutes
	if timeout == 0 {
		timeout = defaultTimeoutMinutes
	}
	if timeout < 0 {
		return domain.JobSpec{}, zerr.With(domain.ErrInvalidTimeout, "timeout_minutes", dto.TimeoutMinutes)
	}

	steps := make([]domain.StepSpec, 0, len(dto.Steps))
	for i, stepDTO := range dto.Steps {
		step, err := expandStep(stepDTO)
		if err != nil {
			return domain.JobSpec{}, zerr.With(err, "step_index", i)
		}
		steps = append(steps, step)
	}

	job := domain.JobSpec{
		Name:           name,
		TimeoutMinutes: timeout,
		Env:            dto.Env,
		Steps:          steps,
	}

	if dto.Cache != nil {
		job.Cache = &domain.CacheSpec{
			Key:   dto.Cache.Key,
			Paths: dto.Cache.Paths,
		}
	}

	return job, nil
}

func expandStep(dto StepDTO) (domain.StepSpec, error) {
	if dto.Run != "" && dto.Uses != "" {
		return domain.StepSpec{}, domain.ErrStepConflict
	}

	if dto.Run != "" {
		params := map[string]string{"command": dto.Run}
		return domain.StepSpec{
			Kind:   domain.StepShellCommand,
			Name:   dto.Name,
			Params: params,
		}, nil
	}

	kind := domain.StepKind(dto.Uses)
	// shell-command is an inline form, never a named action.
	if !domain.KnownStepKind(kind) || kind == domain.StepShellCommand {
		return domain.StepSpec{}, zerr.With(domain.ErrUnknownStepKind, "uses", dto.Uses)
	}

	return domain.StepSpec{
		Kind:   kind,
		Name:   dto.Name,
		Params: dto.With,
	}, nil
}
