package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type metrics struct {
	gatewayCallsTotal   metric.Int64Counter
	gatewayCallDuration metric.Float64Histogram
	gatewayRowsReturned metric.Int64Histogram
	connectorOpsTotal   metric.Int64Counter
	connectorOpDuration metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	m           metrics
)

func buildMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled || !cfg.Metrics {
		return sdkmetric.NewMeterProvider(), nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter for %s: %w", cfg.Endpoint, err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter)
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

func initInstruments() {
	metricsOnce.Do(func() {
		meter := otel.Meter("querygate/gateway")
		m.gatewayCallsTotal, _ = meter.Int64Counter("querygate.gateway.calls_total")
		m.gatewayCallDuration, _ = meter.Float64Histogram("querygate.gateway.call_duration_ms")
		m.gatewayRowsReturned, _ = meter.Int64Histogram("querygate.gateway.rows_returned")
		m.connectorOpsTotal, _ = meter.Int64Counter("querygate.connector.operations_total")
		m.connectorOpDuration, _ = meter.Float64Histogram("querygate.connector.operation_duration_ms")
	})
}

// RecordGatewayCall records one Probe or Execute. errorKind is empty on success.
func RecordGatewayCall(ctx context.Context, operation, engine, errorKind string, rows int, durationMS float64) {
	initInstruments()
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrEngine, engine),
		attribute.Bool("success", errorKind == ""),
		attribute.String(AttrErrorKind, errorKind),
	)
	m.gatewayCallsTotal.Add(ctx, 1, attrs)
	m.gatewayCallDuration.Record(ctx, durationMS, attrs)
	if errorKind == "" && operation == "execute" {
		m.gatewayRowsReturned.Record(ctx, int64(rows), metric.WithAttributes(attribute.String(AttrEngine, engine)))
	}
}

// RecordConnectorOperation records one adapter phase (connect, ping, query, close)
func RecordConnectorOperation(ctx context.Context, adapterName, engine, operation string, success bool, durationMS float64) {
	initInstruments()
	attrs := metric.WithAttributes(
		attribute.String(AttrAdapterName, adapterName),
		attribute.String(AttrEngine, engine),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	m.connectorOpsTotal.Add(ctx, 1, attrs)
	m.connectorOpDuration.Record(ctx, durationMS, attrs)
}
