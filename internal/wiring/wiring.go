// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/gantry/internal/adapters/config"
	_ "go.trai.ch/gantry/internal/adapters/logger"
	_ "go.trai.ch/gantry/internal/adapters/shell"
	_ "go.trai.ch/gantry/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/gantry/internal/app"
)
