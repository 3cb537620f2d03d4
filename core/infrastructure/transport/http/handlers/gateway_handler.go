package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperterse/querygate/core/application/services"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/dto"
	sharedctx "github.com/hyperterse/querygate/core/shared/context"
)

// GatewayHandler serves the probe, query and ask endpoints
type GatewayHandler struct {
	*BaseHandler
	queries *services.QueryService
	ask     *services.AskService
}

// NewGatewayHandler creates the handler. ask may be nil when no translator is configured.
func NewGatewayHandler(queries *services.QueryService, ask *services.AskService) *GatewayHandler {
	return &GatewayHandler{
		BaseHandler: NewBaseHandler("handler"),
		queries:     queries,
		ask:         ask,
	}
}

// Heartbeat handles GET /heartbeat
func (h *GatewayHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	h.WriteSuccess(w, dto.HealthResponse{Success: true, DataSources: len(h.queries.List())})
}

// Probe handles POST /v1/probe
func (h *GatewayHandler) Probe(w http.ResponseWriter, r *http.Request) {
	var req dto.ProbeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.DataSource == nil {
		h.WriteValidationError(w, "data_source is required", nil)
		return
	}
	if err := h.queries.ProbeDescriptor(r.Context(), *req.DataSource); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteSuccess(w, dto.ProbeResponse{Success: true, Name: req.DataSource.Name, Engine: string(req.DataSource.Engine)})
}

// Query handles POST /v1/query
func (h *GatewayHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req dto.QueryRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.DataSource == nil {
		h.WriteValidationError(w, "data_source is required", nil)
		return
	}
	result, err := h.queries.ExecuteDescriptor(r.Context(), *req.DataSource, req.Query)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteSuccess(w, dto.NewQueryResponse(result))
}

// ListDataSources handles GET /v1/datasources
func (h *GatewayHandler) ListDataSources(w http.ResponseWriter, r *http.Request) {
	h.WriteSuccess(w, dto.DataSourcesResponse{Success: true, DataSources: h.queries.List()})
}

// ProbeAll handles POST /v1/datasources/probe
func (h *GatewayHandler) ProbeAll(w http.ResponseWriter, r *http.Request) {
	h.WriteSuccess(w, dto.ProbeAllResponse{Success: true, Results: h.queries.ProbeAll(r.Context())})
}

// ProbeDataSource handles POST /v1/datasources/{name}/probe
func (h *GatewayHandler) ProbeDataSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx := sharedctx.WithDataSource(r.Context(), name)
	if err := h.queries.Probe(ctx, name); err != nil {
		h.WriteError(w, r, err)
		return
	}
	d, _ := h.queries.Lookup(name)
	h.WriteSuccess(w, dto.ProbeResponse{Success: true, Name: name, Engine: string(d.Engine)})
}

// QueryDataSource handles POST /v1/datasources/{name}/query
func (h *GatewayHandler) QueryDataSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req dto.NamedQueryRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.queries.Execute(r.Context(), name, req.Query)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteSuccess(w, dto.NewQueryResponse(result))
}

// Ask handles POST /v1/ask
func (h *GatewayHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.ask == nil {
		h.WriteJSON(w, http.StatusNotImplemented, dto.ErrorResponse{
			Error: dto.ErrorBody{Kind: "NOT_CONFIGURED", Message: "no translator endpoint is configured"},
		})
		return
	}
	var req dto.AskRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	out, err := h.ask.Ask(r.Context(), req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteSuccess(w, dto.AskResponse{QueryResponse: dto.NewQueryResponse(out.Result), Query: out.Query})
}
