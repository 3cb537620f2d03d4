package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/hyperterse/querygate/core/infrastructure/logging"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/handlers"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/middleware"
)

// RegisterRoutes registers all HTTP routes
func RegisterRoutes(r chi.Router, h *handlers.GatewayHandler) {
	log := logging.New("routes")

	routes := []string{
		"GET /heartbeat",
		"GET /metrics",
		"POST /v1/probe",
		"POST /v1/query",
		"POST /v1/ask",
		"GET /v1/datasources",
		"POST /v1/datasources/probe",
		"POST /v1/datasources/{name}/probe",
		"POST /v1/datasources/{name}/query",
	}

	r.Get("/heartbeat", h.Heartbeat)
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/probe", h.Probe)
		r.Post("/query", h.Query)
		r.Post("/ask", h.Ask)

		r.Route("/datasources", func(r chi.Router) {
			r.Get("/", h.ListDataSources)
			r.Post("/probe", h.ProbeAll)
			r.Post("/{name}/probe", h.ProbeDataSource)
			r.Post("/{name}/query", h.QueryDataSource)
		})
	})

	log.Infof("Routes registered: %d", len(routes))
	for _, route := range routes {
		log.Debugf("  %s", route)
	}
}
