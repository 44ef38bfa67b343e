// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/gantry/internal/core/domain"

// ConfigLoader defines the interface for loading pipeline configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the pipeline file found from the given working directory and
	// returns the expanded, validated pipeline. The transform is deterministic:
	// the same file always expands to the same job sequence.
	Load(cwd string) (*domain.Pipeline, error)

	// Discover walks up from cwd to find the directory containing the
	// pipeline file. This directory is treated as the repository root.
	Discover(cwd string) (string, error)
}
