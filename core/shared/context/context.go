package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// DataSourceKey is the context key for the data source name a call targets
	DataSourceKey contextKey = "data_source"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithDataSource records the data source name on the context
func WithDataSource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, DataSourceKey, name)
}

// GetDataSource retrieves the data source name from context
func GetDataSource(ctx context.Context) string {
	if name, ok := ctx.Value(DataSourceKey).(string); ok {
		return name
	}
	return ""
}

// GetTraceID returns the active OpenTelemetry trace ID, if any
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return uuid.NewString()
}
