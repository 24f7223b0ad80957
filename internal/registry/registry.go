// Package registry implements the plugin registry: a mapping of plugin
// module name to PluginEntry plus the factories used to create live
// instances. Go has no dlopen; per spec.md §9's design note this is
// modeled as a plugin host — factories handed to Add on a Registry value,
// mirroring the teacher's ServiceRegistry.Register/RegisterService pattern
// (system/framework/service_engine.go) adapted to plugin modules instead of
// marble services. The package keeps no process-wide instance: each
// Registry is built with New, and only code holding that value can add to
// it.
package registry

import (
	"sync"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

// hostVersion is the gateway's own plugin-ABI version. A module is only
// accepted if its major and minor match exactly.
var hostVersion = model.Version{Major: 2, Minor: 0, Patch: 0}

type entry struct {
	info    model.PluginEntry
	factory pluginapi.Factory
}

// Registry holds loaded plugin modules by name.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	liveName map[string]string // plugin name -> single live instance's node name, for `single` plugins
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		liveName: make(map[string]string),
	}
}

// Add registers a new plugin module. Duplicate names are rejected. This is
// the Go-native analogue of spec.md §4.1's Add(library): instead of
// dlopen+symbol resolution, the caller supplies the already-resolved
// descriptor and factory.
func (r *Registry) Add(info model.PluginEntry, factory pluginapi.Factory) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if !info.Version.CompatibleWith(hostVersion) {
		return gwerrors.VersionMismatch(info.ModuleName, info.Version.String(), hostVersion.String())
	}
	if factory == nil {
		return gwerrors.New(gwerrors.LibraryModuleInvalid, "plugin factory is required").
			WithDetails("plugin", info.ModuleName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ModuleName]; exists {
		return gwerrors.New(gwerrors.LibraryNameConflict, "plugin already registered").
			WithDetails("plugin", info.ModuleName)
	}
	r.entries[info.ModuleName] = &entry{info: *info.Clone(), factory: factory}
	return nil
}

// Update replaces an existing entry's whole descriptor in place; unlike
// Add, it does not check the version against the host. Fails if the
// module isn't present. The factory, if non-nil, is also replaced.
func (r *Registry) Update(info model.PluginEntry, factory pluginapi.Factory) error {
	if err := info.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[info.ModuleName]
	if !ok {
		return gwerrors.NotFound("plugin", info.ModuleName)
	}
	existing.info = *info.Clone()
	if factory != nil {
		existing.factory = factory
	}
	return nil
}

// Delete removes a plugin module. System plugins cannot be removed. The
// caller is responsible for having already uninitialized any live nodes
// using this plugin (spec.md §4.1).
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return gwerrors.NotFound("plugin", name)
	}
	if e.info.Kind == model.PluginKindSystem {
		return gwerrors.SystemNotAllowDelete(name)
	}
	delete(r.entries, name)
	delete(r.liveName, name)
	return nil
}

// Find returns a copy of the named entry.
func (r *Registry) Find(name string) (*model.PluginEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.info.Clone(), true
}

// List returns a snapshot of all registered entries.
func (r *Registry) List() []*model.PluginEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.PluginEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info.Clone())
	}
	return out
}

// CreateInstance resolves the named entry and constructs a live plugin
// instance, enforcing the single/single_name constraint: a `single` plugin
// may have at most one live instance, and if single_name is set that
// instance's node name must equal it exactly.
func (r *Registry) CreateInstance(name, nodeName string) (pluginapi.Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, gwerrors.NotFound("plugin", name)
	}

	if e.info.Single {
		if existing, live := r.liveName[name]; live && existing != nodeName {
			return nil, gwerrors.New(gwerrors.LibraryNotAllowCreateInstance,
				"single plugin already has a live instance").
				WithDetails("plugin", name).
				WithDetails("existing_node", existing)
		}
		if e.info.SingleName != "" && nodeName != e.info.SingleName {
			return nil, gwerrors.New(gwerrors.LibraryNotAllowCreateInstance,
				"single plugin requires a fixed node name").
				WithDetails("plugin", name).
				WithDetails("required_name", e.info.SingleName)
		}
	}

	instance := e.factory()
	if e.info.Single {
		r.liveName[name] = nodeName
	}
	return instance, nil
}

// DestroyInstance releases the bookkeeping associated with a live instance
// of a `single` plugin, permitting a future CreateInstance under a new
// node name.
func (r *Registry) DestroyInstance(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.liveName, name)
}
