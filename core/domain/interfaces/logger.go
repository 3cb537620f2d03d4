package interfaces

// Logger is the tagged logger every component receives
type Logger interface {
	Error(message string)
	Errorf(format string, args ...any)

	Warn(message string)
	Warnf(format string, args ...any)

	Info(message string)
	Infof(format string, args ...any)

	// Success logs at INFO level but always shows regardless of log level
	Success(message string)
	Successf(format string, args ...any)

	Debug(message string)
	Debugf(format string, args ...any)

	// PrintError logs a titled error
	PrintError(title string, err error)
	// PrintValidationErrors logs a numbered list of validation problems
	PrintValidationErrors(errors []string)

	// With returns a child logger carrying an extra structured field
	With(key string, value any) Logger
}
