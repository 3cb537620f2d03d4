package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
	sharedctx "github.com/hyperterse/querygate/core/shared/context"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// DefaultProbeConcurrency bounds ProbeAll
const DefaultProbeConcurrency = 8

// ProbeOutcome is the result of probing one named data source
type ProbeOutcome struct {
	Name       string            `json:"name"`
	Engine     domain.EngineType `json:"type"`
	OK         bool              `json:"ok"`
	Kind       gwerrors.Kind     `json:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS float64           `json:"duration_ms"`
}

// QueryService resolves named data sources from the catalog and hands them
// to the gateway. Transports and the CLI go through it.
type QueryService struct {
	gateway          interfaces.Gateway
	store            interfaces.DescriptorStore
	probeConcurrency int
	log              logging.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(gateway interfaces.Gateway, store interfaces.DescriptorStore) *QueryService {
	return &QueryService{
		gateway:          gateway,
		store:            store,
		probeConcurrency: DefaultProbeConcurrency,
		log:              logging.New("services"),
	}
}

// SetProbeConcurrency changes how many probes ProbeAll runs at once
func (s *QueryService) SetProbeConcurrency(n int) {
	if n > 0 {
		s.probeConcurrency = n
	}
}

// Lookup returns the descriptor registered under name or a NotFound error
func (s *QueryService) Lookup(name string) (domain.DataSourceDescriptor, error) {
	if s.store == nil {
		return domain.DataSourceDescriptor{}, gwerrors.New(gwerrors.KindNotFound, "", "no data source catalog is loaded", nil)
	}
	d, ok := s.store.Get(name)
	if !ok {
		return domain.DataSourceDescriptor{}, gwerrors.New(gwerrors.KindNotFound, "", "data source '"+name+"' not found", nil)
	}
	return d, nil
}

// List returns every catalog entry with credentials masked
func (s *QueryService) List() []domain.DataSourceDescriptor {
	if s.store == nil {
		return []domain.DataSourceDescriptor{}
	}
	all := s.store.List()
	out := make([]domain.DataSourceDescriptor, len(all))
	for i, d := range all {
		out[i] = d.Redacted()
	}
	return out
}

// Probe checks the named data source
func (s *QueryService) Probe(ctx context.Context, name string) error {
	d, err := s.Lookup(name)
	if err != nil {
		return err
	}
	return s.ProbeDescriptor(sharedctx.WithDataSource(ctx, name), d)
}

// ProbeDescriptor checks an ad-hoc descriptor
func (s *QueryService) ProbeDescriptor(ctx context.Context, d domain.DataSourceDescriptor) error {
	err := s.gateway.Probe(ctx, d)
	if err != nil {
		s.log.Warnf("Probe of %s failed: %v", label(d), err)
		return err
	}
	s.log.Debugf("Probe of %s succeeded", label(d))
	return nil
}

// Execute runs queryText against the named data source
func (s *QueryService) Execute(ctx context.Context, name, queryText string) (*domain.QueryResult, error) {
	d, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.ExecuteDescriptor(sharedctx.WithDataSource(ctx, name), d, queryText)
}

// ExecuteDescriptor runs queryText against an ad-hoc descriptor
func (s *QueryService) ExecuteDescriptor(ctx context.Context, d domain.DataSourceDescriptor, queryText string) (*domain.QueryResult, error) {
	result, err := s.gateway.Execute(ctx, domain.QueryRequest{Descriptor: d, QueryText: queryText})
	if err != nil {
		s.log.Warnf("Query against %s failed: %v", label(d), err)
		return nil, err
	}
	s.log.Debugf("Query against %s returned %d rows", label(d), result.Len())
	return result, nil
}

// ProbeAll probes every catalog entry concurrently. Failures are reported per
// entry; the returned slice follows catalog order.
func (s *QueryService) ProbeAll(ctx context.Context) []ProbeOutcome {
	if s.store == nil {
		return []ProbeOutcome{}
	}
	descriptors := s.store.List()
	outcomes := make([]ProbeOutcome, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.probeConcurrency)
	for i, d := range descriptors {
		g.Go(func() error {
			start := time.Now()
			err := s.gateway.Probe(sharedctx.WithDataSource(gctx, d.Name), d)
			outcome := ProbeOutcome{
				Name:       d.Name,
				Engine:     d.Engine,
				OK:         err == nil,
				DurationMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				outcome.Kind = gwerrors.KindOf(err)
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
			// a failed probe must not cancel its siblings
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func label(d domain.DataSourceDescriptor) string {
	if d.Name != "" {
		return d.Name + " (" + string(d.Engine) + ")"
	}
	return d.Redacted().Target() + " (" + string(d.Engine) + ")"
}
