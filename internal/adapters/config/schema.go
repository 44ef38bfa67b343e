package config

import "gopkg.in/yaml.v3"

// PipelineFile represents the structure of the gantry.yaml configuration file.
type PipelineFile struct {
	Name string            `yaml:"name"`
	On   TriggerDTO        `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	// Jobs is kept as a raw node so declaration order survives decoding;
	// a plain map would lose it.
	Jobs yaml.Node `yaml:"jobs"`
}

// TriggerDTO represents the trigger block of a pipeline file.
type TriggerDTO struct {
	Events      []string `yaml:"events"`
	Branches    []string `yaml:"branches"`
	PathsIgnore []string `yaml:"paths-ignore"`
}

// JobDTO represents a job definition in the configuration.
type JobDTO struct {
	TimeoutMinutes int               `yaml:"timeout-minutes"`
	Env            map[string]string `yaml:"env"`
	Cache          *CacheDTO         `yaml:"cache"`
	Steps          []StepDTO         `yaml:"steps"`
}

// CacheDTO represents a job's cache block.
type CacheDTO struct {
	Key   string   `yaml:"key"`
	Paths []string `yaml:"paths"`
}

// StepDTO represents a single step. A step is either a named reusable action
// ("uses", optionally parameterized via "with") or an inline shell command
// ("run"); declaring both is a configuration error.
type StepDTO struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	With map[string]string `yaml:"with"`
	Run  string            `yaml:"run"`
}
