package manager

import (
	"context"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

// AddPlugin registers a new plugin module and persists its descriptor,
// per spec.md §4.1's add(library).
func (mgr *Manager) AddPlugin(ctx context.Context, info model.PluginEntry, factory pluginapi.Factory) error {
	if err := mgr.registry.Add(info, factory); err != nil {
		return err
	}
	if mgr.store != nil {
		if err := mgr.store.StorePlugins(ctx, []*model.PluginEntry{&info}); err != nil {
			_ = mgr.registry.Delete(info.ModuleName)
			return err
		}
	}
	return nil
}

// UpdatePlugin replaces an existing plugin module's mutable fields.
func (mgr *Manager) UpdatePlugin(ctx context.Context, info model.PluginEntry, factory pluginapi.Factory) error {
	if err := mgr.registry.Update(info, factory); err != nil {
		return err
	}
	if mgr.store != nil {
		return mgr.store.StorePlugins(ctx, []*model.PluginEntry{&info})
	}
	return nil
}

// DelPlugin unloads a plugin module and removes its persisted record.
// Fails if any live node still references it.
func (mgr *Manager) DelPlugin(ctx context.Context, name string) error {
	mgr.mu.Lock()
	for _, ln := range mgr.live {
		if ln.node.PluginName == name {
			mgr.mu.Unlock()
			return gwerrors.New(gwerrors.LibraryNotAllowCreateInstance, "plugin has live node instances").
				WithDetails("plugin", name)
		}
	}
	mgr.mu.Unlock()

	if err := mgr.registry.Delete(name); err != nil {
		return err
	}
	if mgr.store != nil {
		return mgr.store.DeletePlugin(ctx, name)
	}
	return nil
}
