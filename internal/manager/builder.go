package manager

import (
	"context"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
)

// CreateDriverNode instantiates a fresh, not-yet-running driver node
// under name from pluginName, satisfying internal/template.Builder.
// Template instantiation never registers the node as a monitor.
func (mgr *Manager) CreateDriverNode(ctx context.Context, name, pluginName string) error {
	mgr.mu.Lock()
	if _, exists := mgr.live[name]; exists {
		mgr.mu.Unlock()
		return gwerrors.AlreadyExists("node", name)
	}
	mgr.mu.Unlock()

	ln, err := mgr.createNode(ctx, name, pluginName, false)
	if err != nil {
		return err
	}
	if ln.node.Type != model.NodeTypeDriver {
		mgr.teardownNode(name)
		return gwerrors.New(gwerrors.LibraryModuleInvalid, "template plugin is not a driver").
			WithDetails("plugin", pluginName)
	}
	if mgr.store == nil {
		return nil
	}
	return mgr.store.StoreNode(ctx, nodeRecordFor(ln))
}

// AddGroup attaches an already-built group to a live node and persists
// it, satisfying internal/template.Builder. CreateGroup (groups_tags.go)
// is the CRUD entry point that builds the model.Group and delegates here.
func (mgr *Manager) AddGroup(ctx context.Context, nodeName string, group *model.Group) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	if err := ln.node.AddGroup(group); err != nil {
		return err
	}
	if mgr.store == nil {
		return nil
	}
	return mgr.store.StoreGroup(ctx, nodeName, groupRecordFor(group))
}

// DestroyNode tears a node down entirely, satisfying
// internal/template.Builder's rollback path.
func (mgr *Manager) DestroyNode(ctx context.Context, name string) error {
	if _, ok := mgr.findLive(name); !ok {
		return nil
	}
	mgr.teardownNode(name)
	mgr.subs.DeleteDriver(name)
	if mgr.store != nil {
		return mgr.store.DeleteNode(ctx, name)
	}
	return nil
}
