package logger

import (
	"github.com/hyperterse/querygate/core/infrastructure/logging"
)

const (
	LogLevelError = logging.LogLevelError
	LogLevelWarn  = logging.LogLevelWarn
	LogLevelInfo  = logging.LogLevelInfo
	LogLevelDebug = logging.LogLevelDebug
)

// Logger is the tagged logger handed to every component
type Logger = logging.Logger

// New creates a logger for tag
func New(tag string) Logger {
	return logging.New(tag)
}

// SetLogLevel sets the global log level
func SetLogLevel(level int) {
	logging.SetLogLevel(level)
}

// GetLogLevel returns the current global log level
func GetLogLevel() int {
	return logging.GetLogLevel()
}

// SetTagFilter sets the comma-separated tag filter
func SetTagFilter(filterStr string) {
	logging.SetTagFilter(filterStr)
}

// SetLogFile starts streaming logs to a file and returns its path
func SetLogFile() (string, error) {
	return logging.SetLogFile()
}

// CloseLogFile closes the log file
func CloseLogFile() error {
	return logging.CloseLogFile()
}
