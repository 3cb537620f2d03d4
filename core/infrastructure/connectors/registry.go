package connectors

import (
	"maps"
	"slices"
	"sync"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// Registry maps engine types to adapters. Adding an engine means registering
// an adapter, not editing a dispatch switch.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.EngineType]interfaces.EngineAdapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.EngineType]interfaces.EngineAdapter)}
}

// DefaultRegistry registers PostgreSQL, MySQL/MariaDB and MongoDB.
// Oracle is deliberately absent so it resolves to UnsupportedEngine.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPostgresAdapter(), domain.EnginePostgreSQL)
	r.Register(NewMySQLAdapter(), domain.EngineMySQL, domain.EngineMariaDB)
	r.Register(NewMongoDBAdapter(), domain.EngineMongoDB)
	return r
}

// Register binds adapter to each engine, replacing earlier bindings
func (r *Registry) Register(adapter interfaces.EngineAdapter, engines ...domain.EngineType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, engine := range engines {
		r.adapters[engine] = adapter
	}
}

// Resolve returns the adapter for engine or an UnsupportedEngine error
func (r *Registry) Resolve(engine domain.EngineType) (interfaces.EngineAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return resolve(r.adapters, engine)
}

// Engines lists the registered engine types in sorted order
func (r *Registry) Engines() []domain.EngineType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.adapters))
}

// Snapshot freezes the current bindings into an immutable lookup table
func (r *Registry) Snapshot() AdapterTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return AdapterTable{adapters: maps.Clone(r.adapters)}
}

// AdapterTable is a read-only engine → adapter mapping, safe for concurrent use
type AdapterTable struct {
	adapters map[domain.EngineType]interfaces.EngineAdapter
}

// Resolve returns the adapter for engine or an UnsupportedEngine error
func (t AdapterTable) Resolve(engine domain.EngineType) (interfaces.EngineAdapter, error) {
	return resolve(t.adapters, engine)
}

func resolve(adapters map[domain.EngineType]interfaces.EngineAdapter, engine domain.EngineType) (interfaces.EngineAdapter, error) {
	adapter, ok := adapters[engine]
	if !ok {
		return nil, gwerrors.New(gwerrors.KindUnsupportedEngine, string(engine),
			"no adapter is registered for engine '"+string(engine)+"'", nil)
	}
	return adapter, nil
}
