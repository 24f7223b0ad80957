// Package nodemanager tracks live nodes by name, mapping each to its
// adapter and transport address. Grounded on spec.md §4.2. Every method
// takes the Manager's own RWMutex, so mutators and readers are safe for
// concurrent use.
package nodemanager

import (
	"strings"
	"sync"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
)

// Adapter is the minimal surface the node manager needs from a live
// adapter instance, to avoid an import cycle with internal/adapter (which
// itself depends on internal/model and internal/pluginapi, not on
// internal/nodemanager).
type Adapter interface {
	Node() *model.Node
}

// Entry is one tracked node: its adapter, plus the bookkeeping flags the
// spec calls out (static/display/single/monitor) and its transport
// address.
type Entry struct {
	Adapter   Adapter
	IsStatic  bool
	Display   bool
	Single    bool
	IsMonitor bool
	Address   string
}

// Manager holds name -> Entry.
type Manager struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	monitors []string
}

// New constructs an empty node manager.
func New() *Manager {
	return &Manager{entries: make(map[string]*Entry)}
}

// Add registers a live node built from an already-constructed adapter.
func (m *Manager) Add(name string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[name]; exists {
		return gwerrors.AlreadyExists("node", name)
	}
	m.entries[name] = entry
	if entry.IsMonitor {
		m.monitors = append(m.monitors, name)
	}
	return nil
}

// UpdateName performs an atomic rename. The caller (internal/manager) is
// responsible for notifying the subscription manager and any template
// references afterward.
func (m *Manager) UpdateName(oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[oldName]
	if !ok {
		return gwerrors.NotFound("node", oldName)
	}
	if _, exists := m.entries[newName]; exists {
		return gwerrors.AlreadyExists("node", newName)
	}
	delete(m.entries, oldName)
	m.entries[newName] = entry
	for i, name := range m.monitors {
		if name == oldName {
			m.monitors[i] = newName
		}
	}
	return nil
}

// UpdateAddress sets a node's transport address. internal/manager calls it
// as soon as the node is registered with the router, before the node's
// init request is handled.
func (m *Manager) UpdateAddress(name, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[name]
	if !ok {
		return gwerrors.NotFound("node", name)
	}
	entry.Address = addr
	return nil
}

// Delete removes a node from the tables. The caller is responsible for
// destroying the adapter and cascading into subscriptions.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; !ok {
		return gwerrors.NotFound("node", name)
	}
	delete(m.entries, name)
	for i, n := range m.monitors {
		if n == name {
			m.monitors = append(m.monitors[:i], m.monitors[i+1:]...)
			break
		}
	}
	return nil
}

// Find returns the named entry.
func (m *Manager) Find(name string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	return e, ok
}

// Filter returns every entry whose node type matches typeMask (nil means
// any type), whose plugin name equals pluginFilter (empty means any), and
// whose name contains nameSubstr (empty means any).
func (m *Manager) Filter(typeMask *model.NodeType, pluginFilter, nameSubstr string) []*Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, 0)
	for name, e := range m.entries {
		node := e.Adapter.Node()
		if typeMask != nil && node.Type != *typeMask {
			continue
		}
		if pluginFilter != "" && node.PluginName != pluginFilter {
			continue
		}
		if nameSubstr != "" && !strings.Contains(name, nameSubstr) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetAll returns every tracked entry.
func (m *Manager) GetAll() []*Entry {
	return m.Filter(nil, "", "")
}

// GetAddrs returns the transport addresses of every node matching typeMask.
func (m *Manager) GetAddrs(typeMask *model.NodeType) []string {
	entries := m.Filter(typeMask, "", "")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Address != "" {
			out = append(out, e.Address)
		}
	}
	return out
}

// ExistsUninit reports whether any registered node still lacks an address.
// Used at startup to gate loading subscriptions until every node is
// reachable.
func (m *Manager) ExistsUninit() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.Address == "" {
			return true
		}
	}
	return false
}

// ForEachMonitor invokes cb for every registered monitor node, using the
// dedicated monitors slice (supplemented from the original's
// neu_node_manager_t.monitors fast-path list) rather than scanning the
// full node table.
func (m *Manager) ForEachMonitor(cb func(name string, e *Entry)) {
	m.mu.RLock()
	names := make([]string, len(m.monitors))
	copy(names, m.monitors)
	m.mu.RUnlock()

	for _, name := range names {
		m.mu.RLock()
		e, ok := m.entries[name]
		m.mu.RUnlock()
		if ok {
			cb(name, e)
		}
	}
}
