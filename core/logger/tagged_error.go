package logger

import (
	"errors"
	"fmt"
)

// taggedError remembers which logger should report err once it reaches the
// command boundary
type taggedError struct {
	tag string
	err error
}

func (e *taggedError) Error() string { return e.err.Error() }

func (e *taggedError) Unwrap() error { return e.err }

// WithTag attaches tag to err. Nil stays nil.
func WithTag(tag string, err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{tag: tag, err: err}
}

// Errorf is fmt.Errorf followed by WithTag
func Errorf(tag, format string, args ...any) error {
	return &taggedError{tag: tag, err: fmt.Errorf(format, args...)}
}

// ErrorTag returns the outermost tag in err's chain, or "" if none was set
func ErrorTag(err error) string {
	return TagOr(err, "")
}

// TagOr is ErrorTag with a fallback for untagged errors
func TagOr(err error, fallback string) string {
	var tagged *taggedError
	if errors.As(err, &tagged) {
		return tagged.tag
	}
	return fallback
}
