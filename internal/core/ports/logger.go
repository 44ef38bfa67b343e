package ports

import "io"

// Logger is the application logging abstraction.
//
//go:generate mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	// Info logs an informational message.
	Info(msg string)

	// Warn logs a warning message.
	Warn(msg string)

	// Error logs an error, unwrapping zerr chains into a readable cause list.
	Error(err error)

	// SetOutput redirects log output. A nil writer resets to stderr.
	SetOutput(w io.Writer)

	// SetJSON switches between JSON and pretty output.
	SetJSON(enable bool)
}
