// Package style provides shared UI styling primitives including colors
// and icons for consistent visual presentation across the CLI.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Steel  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Blue   = lipgloss.Color("#2563EB")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Clock   = "⏱"
	Dot     = "●"
	Circle  = "○"
)

// Status styles used by run summaries.
var (
	SucceededStyle = lipgloss.NewStyle().Foreground(Green)
	FailedStyle    = lipgloss.NewStyle().Foreground(Red)
	TimedOutStyle  = lipgloss.NewStyle().Foreground(Yellow)
	MutedStyle     = lipgloss.NewStyle().Foreground(Steel)
)
