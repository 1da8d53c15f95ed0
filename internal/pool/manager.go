package pool

import (
	"sync"
	"time"

	"github.com/stratus-faas/stratus/internal/config"
	"github.com/stratus-faas/stratus/internal/function"
)

// Manager holds the per-function context pools.
type Manager struct {
	mu          sync.RWMutex
	pools       map[string]*ContextPool
	prov        Provisioner
	idleTimeout time.Duration
}

func NewManager(prov Provisioner) *Manager {
	idle := time.Duration(config.GetInt(config.POOL_IDLE_TIMEOUT, 600)) * time.Second
	return &Manager{
		pools:       make(map[string]*ContextPool),
		prov:        prov,
		idleTimeout: idle,
	}
}

// GetPool retrieves (or creates) the context pool for a function.
func (m *Manager) GetPool(f *function.Function) *ContextPool {
	m.mu.RLock()
	p, ok := m.pools[f.Name]
	m.mu.RUnlock()
	if ok {
		return p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[f.Name]; ok {
		return p
	}
	p = newContextPool(f, m.prov, m.idleTimeout)
	m.pools[f.Name] = p
	return p
}

// RemovePool drops the pool for a deleted function, destroying its contexts.
func (m *Manager) RemovePool(name string) {
	m.mu.Lock()
	p, ok := m.pools[name]
	delete(m.pools, name)
	m.mu.Unlock()
	if ok {
		p.Shutdown()
	}
}

// Pools returns a snapshot of the current pools.
func (m *Manager) Pools() []*ContextPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ContextPool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	return out
}

// WarmStatus returns, for each function, the number of warm contexts available.
func (m *Manager) WarmStatus() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	warmPool := make(map[string]int)
	for name, p := range m.pools {
		_, idle := p.Counts()
		warmPool[name] = idle
	}
	return warmPool
}

// ShutdownAll destroys all contexts (usually on termination).
func (m *Manager) ShutdownAll() {
	for _, p := range m.Pools() {
		p.Shutdown()
	}
}
