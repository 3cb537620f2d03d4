package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperterse/querygate/core/infrastructure/di"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
	transport "github.com/hyperterse/querygate/core/infrastructure/transport/http"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/handlers"
	"github.com/hyperterse/querygate/core/observability"
	"github.com/hyperterse/querygate/core/parser"
)

// Runtime is the gateway HTTP server and everything it depends on
type Runtime struct {
	container *di.Container
	http      *transport.Server
	providers *observability.Providers
	port      string
	version   string
	telemetry bool
	log       logging.Logger
}

// NewRuntime wires a runtime from a validated configuration
func NewRuntime(cfg *parser.Config, opts ...RuntimeOption) (*Runtime, error) {
	container, err := di.NewContainer(cfg)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		container: container,
		port:      cfg.Server.Port,
		version:   "dev",
		telemetry: true,
		log:       logging.New("runtime"),
	}
	if envPort := os.Getenv("PORT"); r.port == "" && envPort != "" {
		r.port = envPort
	}
	for _, opt := range opts {
		opt(r)
	}

	if container.Catalog.Len() == 0 {
		r.log.Infof("No data sources configured; only ad-hoc requests will be served")
	}
	return r, nil
}

// Start starts the runtime server and blocks until SIGTERM/SIGINT
func (r *Runtime) Start() error {
	if err := r.StartAsync(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return r.Stop()
}

// StartAsync starts the runtime server without blocking
func (r *Runtime) StartAsync() error {
	if r.telemetry {
		providers, err := observability.Setup(context.Background(), telemetryConfig(r.container.Config.Telemetry, r.version))
		if err != nil {
			return err
		}
		r.providers = providers
	}

	cfg := r.container.Config
	opts := transport.Options{
		Port:           r.port,
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		// leave room for the error response after the gateway gives up
		RequestTimeout: r.container.Gateway.ExecuteTimeout() + 5*time.Second,
	}
	if r.container.RateLimiter != nil {
		opts.RateLimiter = r.container.RateLimiter
		opts.RequestsPerMinute = cfg.Server.RateLimit.RequestsPerMinute
	}

	r.http = transport.NewServer(opts)
	transport.RegisterRoutes(r.http.Router(), handlers.NewGatewayHandler(r.container.QueryService, r.container.AskService))

	if err := r.http.StartAsync(); err != nil {
		_ = r.providers.Shutdown(context.Background())
		return err
	}
	return nil
}

// telemetryConfig overlays the telemetry section of the file on the defaults
func telemetryConfig(t parser.TelemetryConfig, version string) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.Enabled = t.Enabled
	cfg.Insecure = !t.Secure
	if version != "" {
		cfg.ServiceVersion = version
	}
	if t.Endpoint != "" {
		cfg.Endpoint = t.Endpoint
	}
	if t.ServiceName != "" {
		cfg.ServiceName = t.ServiceName
	}
	if t.Environment != "" {
		cfg.Environment = t.Environment
	}
	if t.SamplingRatio != nil {
		cfg.SamplingRatio = *t.SamplingRatio
	}
	return cfg
}

// Addr returns the address the server is bound to
func (r *Runtime) Addr() string {
	if r.http == nil {
		return ""
	}
	return r.http.Addr()
}

// Catalog returns the live data source catalog
func (r *Runtime) Catalog() *parser.Catalog {
	return r.container.Catalog
}

// ReloadCatalog swaps in the data sources of cfg without restarting the
// HTTP server. Calls already in flight finish against the descriptor they
// resolved. Server settings are only read at startup.
func (r *Runtime) ReloadCatalog(cfg *parser.Config) error {
	r.log.Infof("Reloading data sources...")
	err := parser.Validate(cfg)
	if err == nil {
		err = r.container.Catalog.Replace(cfg)
	}
	if err != nil {
		r.log.Errorf("Reload rejected: %v", err)
		return err
	}
	r.log.Successf("Data sources reloaded (%d)", r.container.Catalog.Len())
	return nil
}

// Stop stops the runtime server gracefully
func (r *Runtime) Stop() error {
	r.log.Infof("Shutting down server...")

	var stopErr error
	if r.http != nil {
		stopErr = r.http.Stop()
	}

	if err := r.container.Close(); err != nil {
		r.log.Warnf("Error closing resources: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.providers.Shutdown(ctx); err != nil {
		r.log.Warnf("Error flushing telemetry: %v", err)
	}

	r.log.Debugf("Shutdown complete")
	return stopErr
}
