package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/hyperterse/querygate/core/domain/interfaces"
)

const (
	LogLevelError = 1
	LogLevelWarn  = 2
	LogLevelInfo  = 3
	LogLevelDebug = 4
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z"

// LogDir is where SetLogFile creates its files
var LogDir = filepath.Join(os.TempDir(), ".querygate", "logs")

var (
	globalLogLevel = LogLevelInfo
	logLevelMutex  sync.RWMutex

	tagFilter      []string
	tagFilterMutex sync.RWMutex

	logFile      *os.File
	outputMutex  sync.RWMutex
	logWriter    io.Writer = os.Stdout
	forceConsole *bool
)

// SetLogLevel sets the global log level. Out-of-range values are ignored.
func SetLogLevel(level int) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if level >= LogLevelError && level <= LogLevelDebug {
		globalLogLevel = level
		zerolog.SetGlobalLevel(convertLogLevel(level))
	}
}

// GetLogLevel returns the current global log level
func GetLogLevel() int {
	logLevelMutex.RLock()
	defer logLevelMutex.RUnlock()
	return globalLogLevel
}

// ParseLogLevel maps names (error, warn, info, debug) or digits onto a level
func ParseLogLevel(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "error":
		return LogLevelError, true
	case "2", "warn", "warning":
		return LogLevelWarn, true
	case "3", "info":
		return LogLevelInfo, true
	case "4", "debug":
		return LogLevelDebug, true
	default:
		return 0, false
	}
}

// SetTagFilter sets the tag filter from a comma-separated string.
// Entries prefixed with "-" exclude a tag and its sub-tags.
func SetTagFilter(filterStr string) {
	tagFilterMutex.Lock()
	defer tagFilterMutex.Unlock()

	if filterStr == "" {
		tagFilter = nil
		return
	}

	tags := strings.Split(filterStr, ",")
	tagFilter = make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tagFilter = append(tagFilter, tag)
		}
	}
}

func matchesTag(tag, filterTag string) bool {
	return tag == filterTag || strings.HasPrefix(tag, filterTag+":")
}

// ShouldLogTag reports whether the current filter lets tag through
func ShouldLogTag(tag string) bool {
	tagFilterMutex.RLock()
	defer tagFilterMutex.RUnlock()

	if len(tagFilter) == 0 {
		return true
	}

	hasInclusion := false
	included := false
	for _, filterTag := range tagFilter {
		if excludeTag, ok := strings.CutPrefix(filterTag, "-"); ok {
			if matchesTag(tag, excludeTag) {
				return false
			}
			continue
		}
		hasInclusion = true
		if matchesTag(tag, filterTag) {
			included = true
		}
	}

	return included || !hasInclusion
}

// SetOutput redirects every logger created afterwards to w; nil restores stdout
func SetOutput(w io.Writer) {
	outputMutex.Lock()
	defer outputMutex.Unlock()
	if w == nil {
		w = os.Stdout
	}
	logWriter = w
}

// SetConsoleFormat forces (or, with nil, stops forcing) the human-readable console writer
func SetConsoleFormat(enabled *bool) {
	outputMutex.Lock()
	defer outputMutex.Unlock()
	forceConsole = enabled
}

// SetLogFile tees output into a fresh file under LogDir and returns its path
func SetLogFile() (string, error) {
	outputMutex.Lock()
	defer outputMutex.Unlock()

	if err := os.MkdirAll(LogDir, 0o755); err != nil {
		return "", err
	}

	filePath := filepath.Join(LogDir, "querygate-"+uuid.NewString()[:8]+".log")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	logWriter = io.MultiWriter(os.Stdout, file)
	return filePath, nil
}

// CloseLogFile closes the log file if one is open
func CloseLogFile() error {
	outputMutex.Lock()
	defer outputMutex.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logWriter = os.Stdout
	return err
}

// ZerologLogger implements interfaces.Logger on top of zerolog
type ZerologLogger struct {
	tag    string
	logger zerolog.Logger
}

// Logger is the interface exported from this package
type Logger = interfaces.Logger

// New creates a logger for tag. Filtered tags get a no-op logger.
func New(tag string) Logger {
	if !ShouldLogTag(tag) {
		return noOpLogger{}
	}

	outputMutex.RLock()
	output := logWriter
	console := isInteractive()
	if forceConsole != nil {
		console = *forceConsole
	}
	outputMutex.RUnlock()

	if console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: consoleTimeFormat}
	}

	return &ZerologLogger{
		tag:    tag,
		logger: zerolog.New(output).With().Str("tag", tag).Timestamp().Logger(),
	}
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func convertLogLevel(level int) zerolog.Level {
	switch level {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func enabled(level int) bool {
	logLevelMutex.RLock()
	defer logLevelMutex.RUnlock()
	return level <= globalLogLevel
}

func (l *ZerologLogger) Error(message string) {
	if enabled(LogLevelError) {
		l.logger.Error().Msg(message)
	}
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	if enabled(LogLevelError) {
		l.logger.Error().Msgf(format, args...)
	}
}

func (l *ZerologLogger) Warn(message string) {
	if enabled(LogLevelWarn) {
		l.logger.Warn().Msg(message)
	}
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	if enabled(LogLevelWarn) {
		l.logger.Warn().Msgf(format, args...)
	}
}

func (l *ZerologLogger) Info(message string) {
	if enabled(LogLevelInfo) {
		l.logger.Info().Msg(message)
	}
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	if enabled(LogLevelInfo) {
		l.logger.Info().Msgf(format, args...)
	}
}

// Success bypasses the level check
func (l *ZerologLogger) Success(message string) {
	l.logger.WithLevel(zerolog.NoLevel).Bool("success", true).Msg(message)
}

func (l *ZerologLogger) Successf(format string, args ...any) {
	l.logger.WithLevel(zerolog.NoLevel).Bool("success", true).Msgf(format, args...)
}

func (l *ZerologLogger) Debug(message string) {
	if enabled(LogLevelDebug) {
		l.logger.Debug().Msg(message)
	}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	if enabled(LogLevelDebug) {
		l.logger.Debug().Msgf(format, args...)
	}
}

func (l *ZerologLogger) PrintError(title string, err error) {
	if err == nil || !enabled(LogLevelError) {
		return
	}
	l.logger.Error().Err(err).Msg(title)
}

func (l *ZerologLogger) PrintValidationErrors(errors []string) {
	if len(errors) == 0 {
		return
	}
	l.Errorf("Validation Errors (%d)", len(errors))
	for i, err := range errors {
		l.Errorf("  %d. %s", i+1, err)
	}
}

func (l *ZerologLogger) With(key string, value any) Logger {
	return &ZerologLogger{
		tag:    l.tag,
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// Tag returns the tag the logger was created with
func (l *ZerologLogger) Tag() string {
	return l.tag
}

type noOpLogger struct{}

func (noOpLogger) Error(string)                   {}
func (noOpLogger) Errorf(string, ...any)          {}
func (noOpLogger) Warn(string)                    {}
func (noOpLogger) Warnf(string, ...any)           {}
func (noOpLogger) Info(string)                    {}
func (noOpLogger) Infof(string, ...any)           {}
func (noOpLogger) Success(string)                 {}
func (noOpLogger) Successf(string, ...any)        {}
func (noOpLogger) Debug(string)                   {}
func (noOpLogger) Debugf(string, ...any)          {}
func (noOpLogger) PrintError(string, error)       {}
func (noOpLogger) PrintValidationErrors([]string) {}
func (n noOpLogger) With(string, any) Logger      { return n }
