// Package logger is the logging facade used across visagate. Packages log
// through the Logger interface so the daemon, the examples and the tests can
// each install the backend they want: a log/slog implementation is provided
// by NewSlog and a testify mock by NewMockLogger.
//
// A process-wide default logger is available through the package-level
// functions and GetLogger; SetLogger replaces it during startup.
package logger

// LogLevel orders log records from most verbose to most severe.
type LogLevel = int8

const (
	// DebugLevel logs are voluminous and usually enabled only while
	// diagnosing problems.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is where loggers start unless configured otherwise.
	InfoLevel
	// WarnLevel logs flag potential issues that do not need individual
	// review.
	WarnLevel
	// ErrorLevel logs indicate failures that require attention.
	ErrorLevel
	// FatalLevel logs a final message before the process exits.
	FatalLevel
)

// Logger is the leveled, structured logging interface every visagate package
// logs through. Key-value pairs follow the message as alternating keys and
// values, in the manner of log/slog.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1) even when
	// FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With returns a child logger that adds the given key-value pairs to
	// every record. The child does not affect the parent.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level.
	Level() LogLevel
	// SetLevel changes the minimum enabled level.
	SetLevel(level LogLevel)
}
