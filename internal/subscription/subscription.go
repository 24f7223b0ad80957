// Package subscription implements the subscription fabric from spec.md
// §4.5: a (driver, group) -> app-delivery-list table plus the small
// NODES_STATE meta-event channel apps can subscribe to independently of any
// group. Grounded on the same mutex-guarded-map-owned-by-one-component
// pattern as internal/nodemanager and internal/registry.
package subscription

import (
	"encoding/json"
	"sync"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

// StaticTag is a synthetic name/value pair merged into every trans-data
// frame delivered to a subscription, per spec.md's static-tag definition
// ("synthetic read-only values to merge into each trans-data frame") — it
// never names a real tag on the driver's group, and carries its constant
// value directly since there is no cache entry to read it from.
type StaticTag struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Delivery describes one app's subscription to a (driver, group) pair:
// the plugin-interpreted params blob, the synthetic tags merged into every
// delivered frame, and the app's transport address for out-of-band
// replies.
type Delivery struct {
	AppName    string
	Params     json.RawMessage
	StaticTags []StaticTag
	Addr       string
}

// Entry pairs a Delivery with the (driver, group) it is scoped to, the
// shape FindByDriver and Get return since their callers need to know
// where each delivery lives, not just who it's for.
type Entry struct {
	Driver string
	Group  string
	Delivery
}

type key struct {
	driver string
	group  string
}

// Manager holds the subscription table and the NODES_STATE meta-event
// subscriber set.
type Manager struct {
	mu   sync.RWMutex
	subs map[key]map[string]*Delivery // (driver,group) -> app name -> delivery

	metaMu   sync.RWMutex
	nodesState map[string]bool // app names subscribed to NODES_STATE broadcasts
}

// New constructs an empty subscription manager.
func New() *Manager {
	return &Manager{
		subs:       make(map[key]map[string]*Delivery),
		nodesState: make(map[string]bool),
	}
}

// Subscribe inserts a new subscription. Returns GROUP_ALREADY_SUBSCRIBED if
// app already has one on (driver, group). Existence validation of the
// driver/group themselves is the caller's (internal/manager's)
// responsibility, since this package has no view of the node table.
func (m *Manager) Subscribe(driver, group, app string, params json.RawMessage, staticTags []StaticTag, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{driver, group}
	apps, ok := m.subs[k]
	if !ok {
		apps = make(map[string]*Delivery)
		m.subs[k] = apps
	}
	if _, exists := apps[app]; exists {
		return gwerrors.AlreadySubscribed(driver, group, app)
	}
	apps[app] = &Delivery{AppName: app, Params: params, StaticTags: staticTags, Addr: addr}
	return nil
}

// Unsubscribe removes app's subscription to (driver, group).
func (m *Manager) Unsubscribe(driver, group, app string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{driver, group}
	apps, ok := m.subs[k]
	if !ok {
		return gwerrors.New(gwerrors.GroupNotSubscribed, "group has no subscribers").
			WithDetails("driver", driver).WithDetails("group", group)
	}
	if _, exists := apps[app]; !exists {
		return gwerrors.New(gwerrors.GroupNotSubscribed, "app is not subscribed to this group").
			WithDetails("driver", driver).WithDetails("group", group).WithDetails("app", app)
	}
	delete(apps, app)
	if len(apps) == 0 {
		delete(m.subs, k)
	}
	return nil
}

// Find returns every app subscribed to (driver, group), used by the
// manager when publishing a trans-data frame.
func (m *Manager) Find(driver, group string) []*Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps, ok := m.subs[key{driver, group}]
	if !ok {
		return nil
	}
	out := make([]*Delivery, 0, len(apps))
	for _, d := range apps {
		clone := *d
		out = append(out, &clone)
	}
	return out
}

// FindByDriver returns every subscription belonging to driver, across all
// of its groups. Used for cascading deletes and group renames.
func (m *Manager) FindByDriver(driver string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for k, apps := range m.subs {
		if k.driver != driver {
			continue
		}
		for _, d := range apps {
			out = append(out, Entry{Driver: k.driver, Group: k.group, Delivery: *d})
		}
	}
	return out
}

// Get returns every subscription belonging to app, across every driver and
// group. Used for querying and for re-issuing subscribe notifications to a
// reconnecting app.
func (m *Manager) Get(app string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for k, apps := range m.subs {
		if d, ok := apps[app]; ok {
			out = append(out, Entry{Driver: k.driver, Group: k.group, Delivery: *d})
		}
	}
	return out
}

// UpdateParams mutates an existing subscription's params/static-tags in
// place.
func (m *Manager) UpdateParams(app, driver, group string, params json.RawMessage, staticTags []StaticTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	apps, ok := m.subs[key{driver, group}]
	if !ok {
		return gwerrors.New(gwerrors.GroupNotSubscribed, "group has no subscribers").
			WithDetails("driver", driver).WithDetails("group", group)
	}
	d, ok := apps[app]
	if !ok {
		return gwerrors.New(gwerrors.GroupNotSubscribed, "app is not subscribed to this group").
			WithDetails("driver", driver).WithDetails("group", group).WithDetails("app", app)
	}
	d.Params = params
	d.StaticTags = staticTags
	return nil
}

// RenameApp rewrites every subscription keyed by app's old name. Atomic
// with respect to other Manager operations via the write lock.
func (m *Manager) RenameApp(oldName, newName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, apps := range m.subs {
		if d, ok := apps[oldName]; ok {
			delete(apps, oldName)
			d.AppName = newName
			apps[newName] = d
		}
	}

	m.metaMu.Lock()
	if m.nodesState[oldName] {
		delete(m.nodesState, oldName)
		m.nodesState[newName] = true
	}
	m.metaMu.Unlock()
}

// RenameDriver rewrites every subscription key belonging to a renamed
// driver.
func (m *Manager) RenameDriver(oldName, newName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, apps := range m.subs {
		if k.driver == oldName {
			delete(m.subs, k)
			m.subs[key{newName, k.group}] = apps
		}
	}
}

// RenameGroup rewrites the subscription key for one renamed group within a
// driver.
func (m *Manager) RenameGroup(driver, oldName, newName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldKey := key{driver, oldName}
	apps, ok := m.subs[oldKey]
	if !ok {
		return
	}
	delete(m.subs, oldKey)
	m.subs[key{driver, newName}] = apps
}

// DeleteDriver removes every subscription belonging to driver, used when a
// driver node is deleted.
func (m *Manager) DeleteDriver(driver string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.subs {
		if k.driver == driver {
			delete(m.subs, k)
		}
	}
}

// DeleteApp removes every subscription belonging to app, across every
// driver and group, used when an app node is deleted — per spec.md's
// subscription lifecycle, "the app disappears" is one of the three
// deletion triggers alongside explicit unsubscribe and driver/group
// deletion.
func (m *Manager) DeleteApp(app string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, apps := range m.subs {
		delete(apps, app)
		if len(apps) == 0 {
			delete(m.subs, k)
		}
	}

	m.metaMu.Lock()
	delete(m.nodesState, app)
	m.metaMu.Unlock()
}

// SubscribeNodesState registers app to receive periodic NODES_STATE
// broadcasts.
func (m *Manager) SubscribeNodesState(app string) {
	m.metaMu.Lock()
	defer m.metaMu.Unlock()
	m.nodesState[app] = true
}

// UnsubscribeNodesState removes app from the NODES_STATE broadcast set.
func (m *Manager) UnsubscribeNodesState(app string) {
	m.metaMu.Lock()
	defer m.metaMu.Unlock()
	delete(m.nodesState, app)
}

// NodesStateSubscribers returns a snapshot of every app subscribed to
// NODES_STATE broadcasts.
func (m *Manager) NodesStateSubscribers() []string {
	m.metaMu.RLock()
	defer m.metaMu.RUnlock()
	out := make([]string, 0, len(m.nodesState))
	for app := range m.nodesState {
		out = append(out, app)
	}
	return out
}
