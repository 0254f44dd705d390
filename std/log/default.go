package log

import (
	"os"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewText(os.Stderr))
}

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the default logger and returns the previous one.
func SetDefault(l *Logger) (prev *Logger) {
	return defaultLogger.Swap(l)
}

// Trace level message.
func Trace(t any, msg string, v ...any) {
	Default().log(t, msg, LevelTrace, v...)
}

// Debug level message.
func Debug(t any, msg string, v ...any) {
	Default().log(t, msg, LevelDebug, v...)
}

// Info level message.
func Info(t any, msg string, v ...any) {
	Default().log(t, msg, LevelInfo, v...)
}

// Warn level message.
func Warn(t any, msg string, v ...any) {
	Default().log(t, msg, LevelWarn, v...)
}

// Error level message.
func Error(t any, msg string, v ...any) {
	Default().log(t, msg, LevelError, v...)
}

// Fatal level message.
func Fatal(t any, msg string, v ...any) {
	Default().log(t, msg, LevelFatal, v...)
}

// HasTrace returns if trace level is enabled.
func HasTrace() bool {
	return Default().Enabled(LevelTrace)
}
