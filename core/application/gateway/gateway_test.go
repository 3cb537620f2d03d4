package gateway_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/querygate/core/application/gateway"
	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/domain/interfaces/mocks"
	"github.com/hyperterse/querygate/core/infrastructure/connectors"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

type textStatement string

func (s textStatement) String() string { return string(s) }

func pgDescriptor() domain.DataSourceDescriptor {
	return domain.DataSourceDescriptor{
		Name:     "orders",
		Engine:   domain.EnginePostgreSQL,
		Host:     "db.internal",
		Port:     5432,
		Username: "app",
		Password: "secret",
		Database: "shop",
	}
}

func newAdapter(t *testing.T) *mocks.MockEngineAdapter {
	adapter := mocks.NewMockEngineAdapter(t)
	adapter.On("Name").Return("mock").Maybe()
	return adapter
}

func newGateway(adapter *mocks.MockEngineAdapter, opts ...gateway.Option) *gateway.Gateway {
	registry := connectors.NewRegistry()
	registry.Register(adapter, domain.EnginePostgreSQL)
	return gateway.New(registry, opts...)
}

func TestNew_ClampsExecuteTimeout(t *testing.T) {
	g := gateway.New(connectors.NewRegistry(),
		gateway.WithConnectTimeout(10*time.Second),
		gateway.WithExecuteTimeout(2*time.Second),
	)
	assert.Equal(t, 10*time.Second, g.ConnectTimeout())
	assert.Equal(t, 10*time.Second, g.ExecuteTimeout())

	g = gateway.New(connectors.NewRegistry())
	assert.Equal(t, gateway.DefaultConnectTimeout, g.ConnectTimeout())
	assert.Equal(t, gateway.DefaultExecuteTimeout, g.ExecuteTimeout())
}

func TestExecute_Success(t *testing.T) {
	adapter := newAdapter(t)
	conn := mocks.NewMockConnection(t)
	adapter.On("Prepare", "SELECT id FROM orders").Return(textStatement("SELECT id FROM orders"), nil).Once()
	adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil).Once()
	conn.On("Query", mock.Anything, textStatement("SELECT id FROM orders")).
		Return([]map[string]any{{"id": int32(1)}, {"id": int32(2)}}, nil).Once()
	conn.On("Close").Return(nil).Once()

	g := newGateway(adapter)
	result, err := g.Execute(context.Background(), domain.QueryRequest{
		Descriptor: pgDescriptor(),
		QueryText:  "SELECT id FROM orders",
	})

	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(1), result.Rows[0]["id"])
	assert.Equal(t, int64(2), result.Rows[1]["id"])
	assert.Equal(t, domain.EnginePostgreSQL, result.Engine)
}

func TestExecute_EmptyResultEncodesAsEmptyArray(t *testing.T) {
	adapter := newAdapter(t)
	conn := mocks.NewMockConnection(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT 1 WHERE false"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil)
	conn.On("Query", mock.Anything, mock.Anything).Return(nil, nil)
	conn.On("Close").Return(nil).Once()

	result, err := newGateway(adapter).Execute(context.Background(), domain.QueryRequest{
		Descriptor: pgDescriptor(),
		QueryText:  "SELECT 1 WHERE false",
	})
	require.NoError(t, err)

	encoded, err := json.Marshal(struct {
		Rows []domain.Record `json:"rows"`
	}{result.Rows})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[]}`, string(encoded))
}

func TestExecute_UnsupportedEngineDoesNoIO(t *testing.T) {
	adapter := newAdapter(t)
	g := newGateway(adapter)

	for _, engine := range []domain.EngineType{domain.EngineOracle, domain.EngineType("Cassandra")} {
		d := pgDescriptor()
		d.Engine = engine

		_, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: d, QueryText: "SELECT 1"})
		assert.True(t, gwerrors.Is(err, gwerrors.KindUnsupportedEngine), "engine %s: %v", engine, err)

		err = g.Probe(context.Background(), d)
		assert.True(t, gwerrors.Is(err, gwerrors.KindUnsupportedEngine), "engine %s: %v", engine, err)
	}
	adapter.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	adapter.AssertNotCalled(t, "Prepare", mock.Anything)
}

func TestExecute_InvalidInput(t *testing.T) {
	adapter := newAdapter(t)
	g := newGateway(adapter)

	d := pgDescriptor()
	d.Database = ""
	_, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: d, QueryText: "SELECT 1"})
	assert.True(t, gwerrors.Is(err, gwerrors.KindInvalidDescriptor), "%v", err)

	_, err = g.Execute(context.Background(), domain.QueryRequest{Descriptor: pgDescriptor(), QueryText: "  "})
	assert.True(t, gwerrors.Is(err, gwerrors.KindInvalidInput), "%v", err)

	adapter.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
}

func TestExecute_PrepareRejectionSkipsConnect(t *testing.T) {
	adapter := newAdapter(t)
	adapter.On("Prepare", "show dbs").
		Return(nil, gwerrors.New(gwerrors.KindUnsupportedQueryForm, "MongoDB", "query must start with \"db.\"", nil)).Once()

	_, err := newGateway(adapter).Execute(context.Background(), domain.QueryRequest{
		Descriptor: pgDescriptor(),
		QueryText:  "show dbs",
	})
	assert.True(t, gwerrors.Is(err, gwerrors.KindUnsupportedQueryForm))
	adapter.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
}

func TestExecute_MongoPrefixCheckedBeforeConnecting(t *testing.T) {
	registry := connectors.NewRegistry()
	registry.Register(connectors.NewMongoDBAdapter(), domain.EngineMongoDB)
	g := gateway.New(registry, gateway.WithConnectTimeout(2*time.Second))

	d := domain.DataSourceDescriptor{
		Engine:   domain.EngineMongoDB,
		Host:     "10.255.255.1",
		Database: "shop",
	}
	for _, query := range []string{"users.find({})", "show collections", "SELECT * FROM users"} {
		start := time.Now()
		_, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: d, QueryText: query})
		assert.True(t, gwerrors.Is(err, gwerrors.KindUnsupportedQueryForm), "%q: %v", query, err)
		assert.Less(t, time.Since(start), time.Second, "%q must fail before connecting", query)
	}
}

func TestExecute_ReleasesConnectionOnEveryPath(t *testing.T) {
	tests := []struct {
		name     string
		rows     []map[string]any
		queryErr error
		closeErr error
		wantKind gwerrors.Kind
	}{
		{
			name: "success",
			rows: []map[string]any{{"n": 1}},
		},
		{
			name:     "query failure",
			queryErr: errors.New("relation \"missing\" does not exist"),
			wantKind: gwerrors.KindQueryFailed,
		},
		{
			name:     "serialization failure",
			rows:     []map[string]any{{"ratio": math.NaN()}},
			wantKind: gwerrors.KindSerializationFailed,
		},
		{
			name:     "close failure does not replace the outcome",
			rows:     []map[string]any{{"n": 1}},
			closeErr: errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newAdapter(t)
			conn := mocks.NewMockConnection(t)
			adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT n"), nil)
			adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil).Once()
			conn.On("Query", mock.Anything, mock.Anything).Return(tt.rows, tt.queryErr).Once()
			conn.On("Close").Return(tt.closeErr).Once()

			result, err := newGateway(adapter).Execute(context.Background(), domain.QueryRequest{
				Descriptor: pgDescriptor(),
				QueryText:  "SELECT n",
			})

			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Len(t, result.Rows, len(tt.rows))
				return
			}
			assert.Nil(t, result)
			assert.True(t, gwerrors.Is(err, tt.wantKind), "got %v", err)
		})
	}
}

func TestExecute_QueryFailureKeepsEngineDiagnostic(t *testing.T) {
	adapter := newAdapter(t)
	conn := mocks.NewMockConnection(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT * FROM missing"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil)
	conn.On("Query", mock.Anything, mock.Anything).
		Return(nil, errors.New(`relation "missing" does not exist`))
	conn.On("Close").Return(nil).Once()

	_, err := newGateway(adapter).Execute(context.Background(), domain.QueryRequest{
		Descriptor: pgDescriptor(),
		QueryText:  "SELECT * FROM missing",
	})
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindQueryFailed, gwerrors.KindOf(err))
	assert.Contains(t, err.Error(), `relation "missing" does not exist`)
}

func TestExecute_ConnectFailureNeverCloses(t *testing.T) {
	adapter := newAdapter(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT 1"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).Return(nil, errors.New("password authentication failed")).Once()

	_, err := newGateway(adapter).Execute(context.Background(), domain.QueryRequest{
		Descriptor: pgDescriptor(),
		QueryText:  "SELECT 1",
	})
	assert.Equal(t, gwerrors.KindConnectionFailed, gwerrors.KindOf(err))
	assert.Contains(t, err.Error(), "password authentication failed")
}

func TestExecute_ConnectTimeout(t *testing.T) {
	adapter := newAdapter(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT 1"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, errors.New("dial tcp: i/o timeout")).Once()

	g := newGateway(adapter,
		gateway.WithConnectTimeout(30*time.Millisecond),
		gateway.WithExecuteTimeout(time.Second),
	)

	start := time.Now()
	_, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: pgDescriptor(), QueryText: "SELECT 1"})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, gwerrors.KindConnectionFailed, gwerrors.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 504, gwerrors.StatusOf(err))
}

func TestExecute_QueryTimeoutDiscardsRows(t *testing.T) {
	adapter := newAdapter(t)
	conn := mocks.NewMockConnection(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT pg_sleep(10)"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil)
	conn.On("Query", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return([]map[string]any{{"partial": true}}, nil).Once()
	conn.On("Close").Return(nil).Once()

	g := newGateway(adapter,
		gateway.WithConnectTimeout(10*time.Millisecond),
		gateway.WithExecuteTimeout(40*time.Millisecond),
	)
	result, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: pgDescriptor(), QueryText: "SELECT pg_sleep(10)"})

	assert.Nil(t, result)
	assert.Equal(t, gwerrors.KindQueryFailed, gwerrors.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_CallerCancellation(t *testing.T) {
	adapter := newAdapter(t)
	conn := mocks.NewMockConnection(t)
	ctx, cancel := context.WithCancel(context.Background())

	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT 1"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil)
	conn.On("Query", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return([]map[string]any{{"n": 1}}, nil).Once()
	conn.On("Close").Return(nil).Once()

	result, err := newGateway(adapter).Execute(ctx, domain.QueryRequest{Descriptor: pgDescriptor(), QueryText: "SELECT 1"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbe(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		adapter := newAdapter(t)
		conn := mocks.NewMockConnection(t)
		adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil).Once()
		conn.On("Ping", mock.Anything).Return(nil).Once()
		conn.On("Close").Return(nil).Once()

		assert.NoError(t, newGateway(adapter).Probe(context.Background(), pgDescriptor()))
	})

	t.Run("ping failure is connection failed and closes", func(t *testing.T) {
		adapter := newAdapter(t)
		conn := mocks.NewMockConnection(t)
		adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil).Once()
		conn.On("Ping", mock.Anything).Return(errors.New("server closed the connection")).Once()
		conn.On("Close").Return(nil).Once()

		err := newGateway(adapter).Probe(context.Background(), pgDescriptor())
		assert.Equal(t, gwerrors.KindConnectionFailed, gwerrors.KindOf(err))
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		adapter := newAdapter(t)
		d := pgDescriptor()
		d.Host = ""
		err := newGateway(adapter).Probe(context.Background(), d)
		assert.Equal(t, gwerrors.KindInvalidDescriptor, gwerrors.KindOf(err))
	})
}

func TestLifecycleTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []gateway.State
	observer := func(_ string, s gateway.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}

	adapter := newAdapter(t)
	conn := mocks.NewMockConnection(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT 1"), nil)
	adapter.On("Connect", mock.Anything, mock.Anything).Return(conn, nil)
	conn.On("Query", mock.Anything, mock.Anything).Return([]map[string]any{}, nil)
	conn.On("Close").Return(nil)

	g := newGateway(adapter, gateway.WithStateObserver(observer))
	_, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: pgDescriptor(), QueryText: "SELECT 1"})
	require.NoError(t, err)

	assert.Equal(t, []gateway.State{
		gateway.StateIdle,
		gateway.StateConnecting,
		gateway.StateExecuting,
		gateway.StateSucceeded,
		gateway.StateReleased,
	}, states)

	states = nil
	d := pgDescriptor()
	d.Engine = domain.EngineOracle
	_, err = g.Execute(context.Background(), domain.QueryRequest{Descriptor: d, QueryText: "SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, []gateway.State{gateway.StateIdle, gateway.StateFailed, gateway.StateReleased}, states)
}

func TestExecute_ConcurrentCallsUseSeparateConnections(t *testing.T) {
	const calls = 16

	adapter := newAdapter(t)
	adapter.On("Prepare", mock.Anything).Return(textStatement("SELECT 1"), nil)

	var mu sync.Mutex
	var conns []*mocks.MockConnection
	adapter.On("Connect", mock.Anything, mock.Anything).
		Return(func(context.Context, domain.DataSourceDescriptor) interfaces.Connection {
			conn := mocks.NewMockConnection(t)
			conn.On("Query", mock.Anything, mock.Anything).Return([]map[string]any{{"n": 1}}, nil).Once()
			conn.On("Close").Return(nil).Once()
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
			return conn
		}, nil)

	g := newGateway(adapter)
	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Execute(context.Background(), domain.QueryRequest{Descriptor: pgDescriptor(), QueryText: "SELECT 1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, conns, calls)
}

func TestProbe_UnreachableHostRespectsConnectTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a non-routable address")
	}

	g := gateway.New(connectors.DefaultRegistry(), gateway.WithConnectTimeout(300*time.Millisecond))
	d := domain.DataSourceDescriptor{
		Engine:   domain.EnginePostgreSQL,
		Host:     "10.255.255.1",
		Port:     5432,
		Username: "app",
		Database: "shop",
	}

	start := time.Now()
	err := g.Probe(context.Background(), d)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, gwerrors.KindConnectionFailed, gwerrors.KindOf(err))
	assert.Less(t, elapsed, 2*time.Second)
}
