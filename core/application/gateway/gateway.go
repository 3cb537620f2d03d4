// Package gateway probes data sources and executes one query against any
// registered engine, returning normalized rows or a classified error.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/connectors"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
	"github.com/hyperterse/querygate/core/infrastructure/normalize"
	"github.com/hyperterse/querygate/core/observability"
	sharedctx "github.com/hyperterse/querygate/core/shared/context"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultExecuteTimeout = 30 * time.Second
)

// Gateway implements interfaces.Gateway. The adapter table is frozen at
// construction, so a Gateway holds no mutable state and is safe for
// concurrent use.
type Gateway struct {
	adapters       connectors.AdapterTable
	normalizer     *normalize.Normalizer
	connectTimeout time.Duration
	executeTimeout time.Duration
	observer       StateObserver
	log            logging.Logger
}

var _ interfaces.Gateway = (*Gateway)(nil)

// Option configures a Gateway
type Option func(*Gateway)

// WithConnectTimeout bounds the connect phase (and the probe ping)
func WithConnectTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.connectTimeout = d
		}
	}
}

// WithExecuteTimeout bounds a whole Execute call, connect phase included
func WithExecuteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.executeTimeout = d
		}
	}
}

// WithNormalizer replaces the default result normalizer
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(g *Gateway) {
		if n != nil {
			g.normalizer = n
		}
	}
}

// WithStateObserver receives every lifecycle transition of every call
func WithStateObserver(observer StateObserver) Option {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// WithLogger replaces the gateway logger
func WithLogger(log logging.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a gateway over a snapshot of registry
func New(registry *connectors.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		adapters:       registry.Snapshot(),
		normalizer:     normalize.New(),
		connectTimeout: DefaultConnectTimeout,
		executeTimeout: DefaultExecuteTimeout,
		log:            logging.New("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.executeTimeout < g.connectTimeout {
		g.executeTimeout = g.connectTimeout
	}
	return g
}

// ConnectTimeout returns the effective connect timeout
func (g *Gateway) ConnectTimeout() time.Duration {
	return g.connectTimeout
}

// ExecuteTimeout returns the effective execute timeout
func (g *Gateway) ExecuteTimeout() time.Duration {
	return g.executeTimeout
}

// Probe opens one connection, pings it and releases it. Validation and
// engine failures keep their kind; everything else is ConnectionFailed.
func (g *Gateway) Probe(ctx context.Context, d domain.DataSourceDescriptor) (err error) {
	c := g.begin(ctx, "probe", d)
	ctx, span := observability.StartSpan(ctx, "gateway.probe", c.spanAttrs()...)
	defer func() { c.finish(ctx, span, err, 0) }()

	if err := d.Validate(); err != nil {
		return err
	}
	adapter, err := g.adapters.Resolve(d.Engine)
	if err != nil {
		return err
	}
	c.adapter = adapter.Name()

	connectCtx, cancel := context.WithTimeout(ctx, g.connectTimeout)
	defer cancel()

	conn, err := c.connect(connectCtx, adapter, d)
	if err != nil {
		return err
	}
	defer c.release(conn)

	start := time.Now()
	err = conn.Ping(connectCtx)
	observability.RecordConnectorOperation(ctx, c.adapter, string(d.Engine), "ping", err == nil, sinceMS(start))
	if err != nil {
		return phaseError(connectCtx, gwerrors.KindConnectionFailed, d.Engine, "ping failed", err)
	}
	return nil
}

// Execute runs req.QueryText on a fresh connection. The connection is
// released on every path and no rows are returned on failure.
func (g *Gateway) Execute(ctx context.Context, req domain.QueryRequest) (result *domain.QueryResult, err error) {
	d := req.Descriptor
	c := g.begin(ctx, "execute", d)
	ctx, span := observability.StartSpan(ctx, "gateway.execute", c.spanAttrs()...)
	defer func() { c.finish(ctx, span, err, result.Len()) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	adapter, err := g.adapters.Resolve(d.Engine)
	if err != nil {
		return nil, err
	}
	c.adapter = adapter.Name()

	stmt, err := adapter.Prepare(req.QueryText)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindUnsupportedQueryForm, string(d.Engine), "query rejected", err)
	}

	execCtx, cancelExec := context.WithTimeout(ctx, g.executeTimeout)
	defer cancelExec()
	connectCtx, cancelConnect := context.WithTimeout(execCtx, g.connectTimeout)
	defer cancelConnect()

	conn, err := c.connect(connectCtx, adapter, d)
	if err != nil {
		return nil, err
	}
	defer c.release(conn)

	c.transition(StateExecuting)
	start := time.Now()
	rows, err := conn.Query(execCtx, stmt)
	observability.RecordConnectorOperation(ctx, c.adapter, string(d.Engine), "query", err == nil, sinceMS(start))
	if err != nil {
		return nil, phaseError(execCtx, gwerrors.KindQueryFailed, d.Engine, "query failed", err)
	}
	// a query that raced its own cancellation may still hand back rows
	if ctxErr := execCtx.Err(); ctxErr != nil {
		return nil, gwerrors.New(gwerrors.KindQueryFailed, string(d.Engine), "query interrupted", ctxErr)
	}

	records, err := g.normalizer.Rows(d.Engine, rows)
	if err != nil {
		return nil, err
	}
	result = domain.NewQueryResult(d.Engine, records)
	result.DurationMS = sinceMS(c.started)
	return result, nil
}

// phaseError classifies a phase failure. When the phase context expired the
// context error is kept in the chain so callers can test for it.
func phaseError(ctx context.Context, kind gwerrors.Kind, engine domain.EngineType, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !gwerrors.IsTimeout(err) {
		return gwerrors.New(kind, string(engine), message, fmt.Errorf("%w: %w", ctxErr, err))
	}
	if gwerrors.KindOf(err) != kind {
		return gwerrors.New(kind, string(engine), message, err)
	}
	return err
}

func sinceMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// call tracks one Probe or Execute through its lifecycle
type call struct {
	g         *Gateway
	operation string
	desc      domain.DataSourceDescriptor
	adapter   string
	requestID string
	started   time.Time
	state     State
	log       logging.Logger
}

func (g *Gateway) begin(ctx context.Context, operation string, d domain.DataSourceDescriptor) *call {
	log := g.log.With("operation", operation).With("engine", string(d.Engine))
	id := sharedctx.GetRequestID(ctx)
	if id != "" {
		log = log.With("request_id", id)
	}
	if d.Name != "" {
		log = log.With("datasource", d.Name)
	}
	c := &call{g: g, operation: operation, desc: d, requestID: id, started: time.Now(), state: StateIdle, log: log}
	c.notify()
	return c
}

func (c *call) spanAttrs() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(observability.AttrOperation, c.operation),
		attribute.String(observability.AttrEngine, string(c.desc.Engine)),
	}
	if c.desc.Name != "" {
		attrs = append(attrs, attribute.String(observability.AttrDataSource, c.desc.Name))
	}
	if c.requestID != "" {
		attrs = append(attrs, attribute.String(observability.AttrRequestID, c.requestID))
	}
	return attrs
}

func (c *call) transition(next State) {
	c.log.Debugf("%s -> %s", c.state, next)
	c.state = next
	c.notify()
}

func (c *call) notify() {
	if c.g.observer != nil {
		c.g.observer(c.operation, c.state)
	}
}

func (c *call) connect(ctx context.Context, adapter interfaces.EngineAdapter, d domain.DataSourceDescriptor) (interfaces.Connection, error) {
	c.transition(StateConnecting)
	c.log.Debugf("Connecting to %s", d.Target())
	start := time.Now()
	conn, err := adapter.Connect(ctx, d)
	observability.RecordConnectorOperation(ctx, c.adapter, string(d.Engine), "connect", err == nil, sinceMS(start))
	if err != nil {
		if conn != nil {
			c.release(conn)
		}
		return nil, phaseError(ctx, gwerrors.KindConnectionFailed, d.Engine, "connect failed", err)
	}
	return conn, nil
}

// release closes the connection. A close failure never replaces the call outcome.
func (c *call) release(conn interfaces.Connection) {
	if err := conn.Close(); err != nil {
		c.log.Warnf("Failed to close %s connection: %v", c.desc.Engine, err)
	}
}

func (c *call) finish(ctx context.Context, span trace.Span, err error, rows int) {
	defer observability.EndSpan(span, err)
	errorKind := ""
	if err != nil {
		errorKind = string(gwerrors.KindOf(err))
		c.transition(StateFailed)
		span.SetAttributes(attribute.String(observability.AttrErrorKind, errorKind))
		c.log.Debugf("%s failed: %v", c.operation, err)
	} else {
		c.transition(StateSucceeded)
		span.SetAttributes(attribute.Int(observability.AttrRowCount, rows))
	}
	c.transition(StateReleased)
	observability.RecordGatewayCall(ctx, c.operation, string(c.desc.Engine), errorKind, rows, sinceMS(c.started))
}
