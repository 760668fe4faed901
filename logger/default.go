package logger

// defLogger is the process-wide default, replaced through SetLogger.
var defLogger = NewSlog(InfoLevel, false)

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	return defLogger
}

// SetLogger replaces the process-wide default logger.
// Not safe to call concurrently with logging; install it during startup.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}

// The package-level functions forward to the default logger.

func Debug(msg string, keysAndValues ...any) {
	defLogger.Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	defLogger.Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	defLogger.Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	defLogger.Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	defLogger.Fatal(msg, keysAndValues...)
}

func With(keyValues ...any) Logger {
	return defLogger.With(keyValues...)
}

func SetLevel(level LogLevel) {
	defLogger.SetLevel(level)
}
