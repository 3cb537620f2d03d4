package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	"github.com/hyperterse/querygate/core/infrastructure/logging"
)

// Providers owns the installed trace and meter providers until Shutdown
type Providers struct {
	Config Config
	traces *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider
}

type errorHandler struct {
	log logging.Logger
}

func (h errorHandler) Handle(err error) {
	if err != nil {
		h.log.Warnf("Telemetry export: %v", err)
	}
}

// Setup resolves base against the environment and installs the global
// providers and W3C propagators.
func Setup(ctx context.Context, base Config) (*Providers, error) {
	cfg, err := ResolveConfig(base)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	traces, err := buildTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	meters, err := buildMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	log := logging.New("observability")
	otel.SetTracerProvider(traces)
	otel.SetMeterProvider(meters)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(errorHandler{log: log})

	if cfg.Enabled {
		log.Infof("Exporting telemetry for %s to %s", cfg.ServiceName, cfg.Endpoint)
	}
	return &Providers{Config: cfg, traces: traces, meters: meters}, nil
}

// Shutdown flushes pending spans and metrics. Safe on a nil receiver.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	if p.meters != nil {
		errs = append(errs, p.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
