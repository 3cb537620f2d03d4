package interfaces

import (
	"context"

	"github.com/hyperterse/querygate/core/domain"
)

// Gateway is the single entry point for probing and executing against any engine
type Gateway interface {
	// Probe opens a short-lived connection and verifies liveness
	Probe(ctx context.Context, descriptor domain.DataSourceDescriptor) error

	// Execute runs one query and returns normalized rows
	Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}

// TranslationPort turns a natural-language question into a query in the
// engine's dialect. Implementations live outside the gateway.
type TranslationPort interface {
	Translate(ctx context.Context, question, schema string, engine domain.EngineType) (string, error)
}

// DescriptorStore resolves named data sources. The gateway never reads it.
type DescriptorStore interface {
	// Get returns the descriptor registered under name
	Get(name string) (domain.DataSourceDescriptor, bool)

	// List returns every descriptor sorted by name
	List() []domain.DataSourceDescriptor
}
