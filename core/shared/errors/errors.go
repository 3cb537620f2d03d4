package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure. Callers branch on the kind, never on the message.
type Kind string

const (
	// Gateway errors
	KindUnsupportedEngine    Kind = "UNSUPPORTED_ENGINE"
	KindInvalidDescriptor    Kind = "INVALID_DESCRIPTOR"
	KindConnectionFailed     Kind = "CONNECTION_FAILED"
	KindUnsupportedQueryForm Kind = "UNSUPPORTED_QUERY_FORM"
	KindQueryFailed          Kind = "QUERY_FAILED"
	KindSerializationFailed  Kind = "SERIALIZATION_FAILED"

	// Service errors
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindTranslationFailed Kind = "TRANSLATION_FAILED"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// GatewayError is the only error type that crosses the gateway boundary.
type GatewayError struct {
	Kind    Kind
	Engine  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	prefix := string(e.Kind)
	if e.Engine != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Kind, e.Engine)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Status maps the error kind to an HTTP status code.
// Deadlines map to 504 regardless of the phase they interrupted.
func (e *GatewayError) Status() int {
	if IsTimeout(e) {
		return http.StatusGatewayTimeout
	}
	return statusForKind(e.Kind)
}

// New creates a new gateway error
func New(kind Kind, engine, message string, err error) *GatewayError {
	return &GatewayError{
		Kind:    kind,
		Engine:  engine,
		Message: message,
		Err:     err,
	}
}

// Wrap classifies err under kind unless it already carries a GatewayError,
// in which case the original classification wins.
func Wrap(kind Kind, engine, message string, err error) error {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return err
	}
	return New(kind, engine, message, err)
}

// KindOf extracts the kind from an error chain. It returns "" for errors
// that were never classified.
func KindOf(err error) Kind {
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

// Is reports whether err carries a GatewayError of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTimeout reports whether err was caused by an expired deadline
func IsTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded)
}

// StatusOf returns the HTTP status for any error
func StatusOf(err error) int {
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return gwErr.Status()
	}
	return http.StatusInternalServerError
}

func statusForKind(kind Kind) int {
	switch kind {
	case KindUnsupportedEngine, KindInvalidDescriptor, KindUnsupportedQueryForm, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindQueryFailed:
		return http.StatusUnprocessableEntity
	case KindConnectionFailed, KindTranslationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
