package dto

import (
	"github.com/hyperterse/querygate/core/application/services"
	"github.com/hyperterse/querygate/core/domain"
)

// ProbeRequest probes an inline descriptor. The descriptor itself is
// validated by the gateway, not by struct tags.
type ProbeRequest struct {
	DataSource *domain.DataSourceDescriptor `json:"data_source" validate:"-"`
}

// QueryRequest runs one query against an inline descriptor
type QueryRequest struct {
	DataSource *domain.DataSourceDescriptor `json:"data_source" validate:"-"`
	Query      string                       `json:"query" validate:"required"`
}

// NamedQueryRequest runs one query against a catalog entry named in the path
type NamedQueryRequest struct {
	Query string `json:"query" validate:"required"`
}

// AskRequest is the body of POST /v1/ask
type AskRequest = services.AskRequest

// QueryResponse wraps the rows of a successful query. Rows is never null.
type QueryResponse struct {
	Success    bool            `json:"success"`
	Rows       []domain.Record `json:"rows"`
	Engine     string          `json:"engine"`
	DurationMS float64         `json:"duration_ms"`
}

// NewQueryResponse converts a gateway result
func NewQueryResponse(result *domain.QueryResult) QueryResponse {
	rows := result.Rows
	if rows == nil {
		rows = []domain.Record{}
	}
	return QueryResponse{
		Success:    true,
		Rows:       rows,
		Engine:     string(result.Engine),
		DurationMS: result.DurationMS,
	}
}

// AskResponse carries the generated query and its rows
type AskResponse struct {
	QueryResponse
	Query string `json:"query"`
}

// ProbeResponse reports a successful probe
type ProbeResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Engine  string `json:"engine"`
}

// ProbeAllResponse reports every catalog probe
type ProbeAllResponse struct {
	Success bool                    `json:"success"`
	Results []services.ProbeOutcome `json:"results"`
}

// DataSourcesResponse lists the catalog with credentials masked
type DataSourcesResponse struct {
	Success     bool                          `json:"success"`
	DataSources []domain.DataSourceDescriptor `json:"data_sources"`
}
