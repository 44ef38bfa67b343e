// Package output provides utilities for creating termenv.Output with a
// consistent color profile across the CLI.
package output

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// ColorProfile returns the color profile for the current environment.
// NO_COLOR always wins. A pipeline-level color toggle set to "always"
// forces ANSI even without a TTY, the way CI jobs request colored logs.
func ColorProfile(colorToggle string) termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	switch colorToggle {
	case "always":
		return termenv.ANSI
	case "never":
		return termenv.Ascii
	default:
		return termenv.EnvColorProfile()
	}
}

// New creates a termenv.Output honoring the given color toggle.
func New(w io.Writer, colorToggle string) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	return termenv.NewOutput(w, termenv.WithProfile(ColorProfile(colorToggle)))
}
