package connectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/querygate/core/domain"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	assert.Equal(t, []domain.EngineType{
		domain.EngineMariaDB, domain.EngineMongoDB, domain.EngineMySQL, domain.EnginePostgreSQL,
	}, registry.Engines())

	mysqlAdapter, err := registry.Resolve(domain.EngineMySQL)
	require.NoError(t, err)
	mariaAdapter, err := registry.Resolve(domain.EngineMariaDB)
	require.NoError(t, err)
	assert.Same(t, mysqlAdapter, mariaAdapter)

	_, err = registry.Resolve(domain.EngineOracle)
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindUnsupportedEngine, gwerrors.KindOf(err))
}

func TestRegistry_SnapshotIsFrozen(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewPostgresAdapter(), domain.EnginePostgreSQL)
	table := registry.Snapshot()

	registry.Register(NewMongoDBAdapter(), domain.EngineMongoDB)

	_, err := table.Resolve(domain.EngineMongoDB)
	assert.Equal(t, gwerrors.KindUnsupportedEngine, gwerrors.KindOf(err))
	_, err = registry.Resolve(domain.EngineMongoDB)
	assert.NoError(t, err)
}
