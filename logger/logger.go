// Package logger provides the logging facade used by go-flexgui, so that
// applications can plug in their preferred logging implementation.
//
// The Logger interface carries structured key-value pairs and the usual
// severity levels:
//
//   - DebugLevel: per-frame and per-request tracing, disabled in production.
//   - InfoLevel: connection lifecycle events.
//   - WarnLevel: timeouts, dropped replies and other recoverable conditions.
//   - ErrorLevel: transport and framing failures.
//   - FatalLevel: unrecoverable errors, the process exits.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are voluminous and usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines the logging interface used across the go-flexgui packages.
type Logger interface {
	// Debug logs a message at DebugLevel with the given key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with the given key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with the given key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with the given key-value pairs.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel and then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger carrying the given key-values.
	// The child and the parent do not affect each other.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level.
	Level() Level
	// SetLevel sets the minimum enabled level.
	SetLevel(level Level)
}
