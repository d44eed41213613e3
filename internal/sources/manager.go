package sources

import (
	"sync"

	"licitahub/internal/ports"
	"licitahub/internal/resilience"
)

// Manager owns the registry of resilience-wrapped source clients and
// answers which sources may be queried right now. It performs no I/O; reads
// come from many concurrent callers while mutation only happens through
// Register, Enable and Disable.
type Manager struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

type entry struct {
	fetcher ports.ListingFetcher
	breaker *resilience.Breaker
	enabled bool
}

// Status is a diagnostic snapshot of one registered source.
type Status struct {
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	CircuitState string `json:"circuitState"`
	Failures     int    `json:"failures"`
}

// NewManager builds an empty registry. Each orchestrator gets its own
// constructed instance; there is no ambient global.
func NewManager() *Manager {
	return &Manager{entries: map[string]*entry{}}
}

// Register upserts a source under its name, enabled by default. Re-registering
// keeps the original registration order.
func (m *Manager) Register(name string, fetcher ports.ListingFetcher, breaker *resilience.Breaker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; !ok {
		m.order = append(m.order, name)
	}
	m.entries[name] = &entry{fetcher: fetcher, breaker: breaker, enabled: true}
}

// Enable marks a source eligible again; false means the name is unknown.
func (m *Manager) Enable(name string) bool {
	return m.setEnabled(name, true)
}

// Disable removes a source from eligibility without unregistering it.
func (m *Manager) Disable(name string) bool {
	return m.setEnabled(name, false)
}

func (m *Manager) setEnabled(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return false
	}
	e.enabled = enabled
	return true
}

// Get returns the registered fetcher or nil for an unknown name, so call
// sites degrade instead of failing.
func (m *Manager) Get(name string) ports.ListingFetcher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil
	}
	return e.fetcher
}

// EnabledSources returns, in registration order, every source that is both
// enabled and whose circuit admits calls.
func (m *Manager) EnabledSources() []ports.ListingFetcher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eligible := make([]ports.ListingFetcher, 0, len(m.order))
	for _, name := range m.order {
		e := m.entries[name]
		if e.enabled && m.canExecute(e) {
			eligible = append(eligible, e.fetcher)
		}
	}
	return eligible
}

// Resolve maps requested source names to eligible fetchers, silently
// skipping unknown, disabled and circuit-blocked names.
func (m *Manager) Resolve(names []string) []ports.ListingFetcher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eligible := make([]ports.ListingFetcher, 0, len(names))
	for _, name := range names {
		e, ok := m.entries[name]
		if !ok {
			continue
		}
		if e.enabled && m.canExecute(e) {
			eligible = append(eligible, e.fetcher)
		}
	}
	return eligible
}

// Status reports a snapshot of every registered source in registration
// order. It never fails and never blocks the fetch path.
func (m *Manager) Status() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		e := m.entries[name]
		st := Status{Name: name, Enabled: e.enabled, CircuitState: resilience.StateClosed.String()}
		if e.breaker != nil {
			snap := e.breaker.Snapshot()
			st.CircuitState = snap.State.String()
			st.Failures = snap.Failures
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func (m *Manager) canExecute(e *entry) bool {
	if e.breaker == nil {
		return true
	}
	return e.breaker.CanExecute()
}
