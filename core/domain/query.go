package domain

import (
	"strings"

	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// Record is one normalized row or document
type Record = map[string]any

// QueryRequest pairs a descriptor with one already dialect-correct query
type QueryRequest struct {
	Descriptor DataSourceDescriptor `json:"data_source"`
	QueryText  string               `json:"query"`
}

// Validate checks the descriptor and rejects blank query text
func (r QueryRequest) Validate() error {
	if err := r.Descriptor.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.QueryText) == "" {
		return gwerrors.New(gwerrors.KindInvalidInput, string(r.Descriptor.Engine), "query text cannot be empty", nil)
	}
	return nil
}

// QueryResult is the uniform, JSON-safe outcome of a successful Execute.
// Rows keep the order the engine returned them in and are never nil.
type QueryResult struct {
	Rows       []Record   `json:"rows"`
	Engine     EngineType `json:"engine,omitempty"`
	DurationMS float64    `json:"duration_ms,omitempty"`
}

// NewQueryResult builds a result, replacing a nil slice with an empty one
func NewQueryResult(engine EngineType, rows []Record) *QueryResult {
	if rows == nil {
		rows = []Record{}
	}
	return &QueryResult{Rows: rows, Engine: engine}
}

// Len returns the number of rows
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}
