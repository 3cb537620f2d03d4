// Package mocks holds testify mocks of the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockEngineAdapter is a mock of interfaces.EngineAdapter
type MockEngineAdapter struct {
	mock.Mock
}

// NewMockEngineAdapter creates a mock that asserts its expectations on cleanup
func NewMockEngineAdapter(t testingT) *MockEngineAdapter {
	m := &MockEngineAdapter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockEngineAdapter) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEngineAdapter) Prepare(queryText string) (interfaces.Statement, error) {
	args := m.Called(queryText)
	stmt, _ := args.Get(0).(interfaces.Statement)
	return stmt, args.Error(1)
}

func (m *MockEngineAdapter) Connect(ctx context.Context, descriptor domain.DataSourceDescriptor) (interfaces.Connection, error) {
	args := m.Called(ctx, descriptor)
	if fn, ok := args.Get(0).(func(context.Context, domain.DataSourceDescriptor) interfaces.Connection); ok {
		return fn(ctx, descriptor), args.Error(1)
	}
	conn, _ := args.Get(0).(interfaces.Connection)
	return conn, args.Error(1)
}

// MockConnection is a mock of interfaces.Connection
type MockConnection struct {
	mock.Mock
}

// NewMockConnection creates a mock that asserts its expectations on cleanup
func NewMockConnection(t testingT) *MockConnection {
	m := &MockConnection{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockConnection) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnection) Query(ctx context.Context, stmt interfaces.Statement) ([]map[string]any, error) {
	args := m.Called(ctx, stmt)
	rows, _ := args.Get(0).([]map[string]any)
	return rows, args.Error(1)
}

func (m *MockConnection) Close() error {
	return m.Called().Error(0)
}

// MockGateway is a mock of interfaces.Gateway
type MockGateway struct {
	mock.Mock
}

// NewMockGateway creates a mock that asserts its expectations on cleanup
func NewMockGateway(t testingT) *MockGateway {
	m := &MockGateway{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockGateway) Probe(ctx context.Context, descriptor domain.DataSourceDescriptor) error {
	return m.Called(ctx, descriptor).Error(0)
}

func (m *MockGateway) Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*domain.QueryResult)
	return result, args.Error(1)
}

// MockTranslationPort is a mock of interfaces.TranslationPort
type MockTranslationPort struct {
	mock.Mock
}

// NewMockTranslationPort creates a mock that asserts its expectations on cleanup
func NewMockTranslationPort(t testingT) *MockTranslationPort {
	m := &MockTranslationPort{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTranslationPort) Translate(ctx context.Context, question, schema string, engine domain.EngineType) (string, error) {
	args := m.Called(ctx, question, schema, engine)
	return args.String(0), args.Error(1)
}

var (
	_ interfaces.EngineAdapter   = (*MockEngineAdapter)(nil)
	_ interfaces.Connection      = (*MockConnection)(nil)
	_ interfaces.Gateway         = (*MockGateway)(nil)
	_ interfaces.TranslationPort = (*MockTranslationPort)(nil)
)
