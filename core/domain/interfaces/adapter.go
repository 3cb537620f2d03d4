package interfaces

import (
	"context"

	"github.com/hyperterse/querygate/core/domain"
)

// Statement is a query that passed an adapter's syntactic precondition.
// It is produced without any I/O.
type Statement interface {
	// String returns the query text as it will be sent to the engine
	String() string
}

// EngineAdapter is the per-engine-family implementation of connect and execute
type EngineAdapter interface {
	// Name identifies the adapter in logs and metrics
	Name() string

	// Prepare checks the query text before a connection is opened
	Prepare(queryText string) (Statement, error)

	// Connect opens exactly one connection for the descriptor. The caller owns
	// the returned Connection and must Close it.
	Connect(ctx context.Context, descriptor domain.DataSourceDescriptor) (Connection, error)
}

// Connection is a live, call-scoped handle to one engine
type Connection interface {
	// Ping confirms reachability and credentials
	Ping(ctx context.Context) error

	// Query runs one statement and returns every row in engine order
	Query(ctx context.Context, stmt Statement) ([]map[string]any, error)

	// Close releases the connection and anything it pooled
	Close() error
}
