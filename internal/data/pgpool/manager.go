package pgpool

import (
	"context"

	"sync"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

// Manager binds a Pool to the execution context it was built under. The
// process embedding this pipeline can be re-entered under a fresh service
// context after being idle; a connection dialed under the old, torn-down
// context must never be handed out again. Get detects the change and
// rebuilds the pool before any caller sees a connection.
type Manager struct {
	mu      sync.Mutex
	factory Factory
	minSize int
	maxSize int

	pool    *Pool
	boundTo context.Context
	logger  *logger_i.Logger
}

func NewManager(factory Factory) *Manager {
	return &Manager{
		factory: factory,
		minSize: config.PoolMinConns,
		maxSize: config.PoolMaxConns,
		logger:  logger_i.NewLogger("PgPoolManager"),
	}
}

// Get returns the pool bound to runtime, building or rebuilding it as
// needed. runtime is the service-lifetime context, not a per-request one.
func (m *Manager) Get(runtime context.Context) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil && m.boundTo == runtime && m.boundTo.Err() == nil {
		return m.pool, nil
	}

	if m.pool != nil {
		m.logger.Info("Execution context changed, rebuilding pool")
		m.pool.Close(context.Background())
		m.pool = nil
		m.boundTo = nil
	}

	pool, err := NewPool(runtime, m.factory, m.minSize, m.maxSize)
	if err != nil {
		return nil, err
	}
	m.pool = pool
	m.boundTo = runtime
	return pool, nil
}

// Rebuild forces invalidation regardless of the bound context's state.
func (m *Manager) Rebuild(runtime context.Context) (*Pool, error) {
	m.mu.Lock()
	if m.pool != nil {
		m.pool.Close(context.Background())
		m.pool = nil
		m.boundTo = nil
	}
	m.mu.Unlock()
	return m.Get(runtime)
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close(context.Background())
		m.pool = nil
		m.boundTo = nil
	}
}
