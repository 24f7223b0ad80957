package manager

import (
	"context"
	"encoding/json"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/persistence"
)

// AddNode instantiates a live node from a loaded plugin module and
// persists its record, per spec.md §4.2's add_node(name, plugin, ...).
func (mgr *Manager) AddNode(ctx context.Context, name, pluginName string, isMonitor bool) error {
	mgr.mu.Lock()
	if _, exists := mgr.live[name]; exists {
		mgr.mu.Unlock()
		return gwerrors.AlreadyExists("node", name)
	}
	mgr.mu.Unlock()

	ln, err := mgr.createNode(ctx, name, pluginName, isMonitor)
	if err != nil {
		return err
	}

	if mgr.store != nil {
		record := persistence.NodeRecord{
			Name:       name,
			PluginName: pluginName,
			Type:       ln.node.Type,
			IsMonitor:  isMonitor,
			Single:     ln.node.Single,
		}
		if err := mgr.store.StoreNode(ctx, record); err != nil {
			mgr.teardownNode(name)
			return err
		}
	}
	return nil
}

// DelNode tears down a live node and removes its persisted record and
// every subscription/group/tag cascaded from it. Per spec.md S5, every app
// with a live subscription on a deleted driver receives a NODE_DELETED
// broadcast, and an app node's own subscriptions are dropped entirely.
func (mgr *Manager) DelNode(ctx context.Context, name string) error {
	ln, ok := mgr.findLive(name)
	if !ok {
		return gwerrors.NotFound("node", name)
	}

	var notify []string
	switch ln.node.Type {
	case model.NodeTypeDriver:
		for _, entry := range mgr.subs.FindByDriver(name) {
			notify = append(notify, entry.AppName)
		}
		mgr.subs.DeleteDriver(name)
	case model.NodeTypeApp:
		mgr.subs.DeleteApp(name)
	}

	mgr.teardownNode(name)

	if mgr.store != nil {
		if err := mgr.store.DeleteNode(ctx, name); err != nil {
			return err
		}
	}

	body, _ := json.Marshal(nodeDeletedBody{Name: name})
	for _, app := range notify {
		env := message.New(message.TypeNodeDeleted, "manager", app, body)
		if err := mgr.router.Route(ctx, env); err != nil {
			mgr.Logger().WithContext(ctx).WithError(err).WithField("app", app).
				Warn("failed to deliver NODE_DELETED")
		}
	}
	mgr.broadcastNodesState(ctx)
	return nil
}

type nodeDeletedBody struct {
	Name string `json:"name"`
}

// RenameNode renames a live node across the node table, router, and
// subscription fabric.
func (mgr *Manager) RenameNode(ctx context.Context, oldName, newName string) error {
	mgr.mu.Lock()
	ln, ok := mgr.live[oldName]
	if !ok {
		mgr.mu.Unlock()
		return gwerrors.NotFound("node", oldName)
	}
	if _, exists := mgr.live[newName]; exists {
		mgr.mu.Unlock()
		return gwerrors.AlreadyExists("node", newName)
	}
	delete(mgr.live, oldName)
	mgr.live[newName] = ln
	mgr.mu.Unlock()

	if err := mgr.nodes.UpdateName(oldName, newName); err != nil {
		return err
	}
	mgr.router.Unregister(oldName)
	mgr.router.Register(newName, ln.receiver(), ln.node.IsMonitor)

	switch ln.node.Type {
	case model.NodeTypeDriver:
		mgr.subs.RenameDriver(oldName, newName)
	case model.NodeTypeApp:
		mgr.subs.RenameApp(oldName, newName)
	}
	return nil
}

// NodeSetting forwards a settings blob to node's adapter, which validates
// it through the plugin and transitions INIT -> READY, then persists it.
func (mgr *Manager) NodeSetting(ctx context.Context, name string, setting json.RawMessage) error {
	ln, ok := mgr.findLive(name)
	if !ok {
		return gwerrors.NotFound("node", name)
	}

	env := message.New(message.TypeReqNodeSetting, "manager", name, setting)
	if err := ln.receiver().Send(ctx, env); err != nil {
		return err
	}
	if mgr.store != nil {
		return mgr.store.StoreNodeSetting(ctx, name, setting)
	}
	return nil
}

// NodeCtl forwards a start/stop directive to node's adapter. For driver
// nodes, "start" also calls StartGroup for every group as soon as the
// directive is queued, without waiting for the node to reach RUNNING;
// "stop" leaves the group timers attached.
func (mgr *Manager) NodeCtl(ctx context.Context, name, action string) error {
	ln, ok := mgr.findLive(name)
	if !ok {
		return gwerrors.NotFound("node", name)
	}

	body, _ := json.Marshal(nodeCtlBody{Action: action})
	if err := ln.receiver().Send(ctx, message.New(message.TypeReqNodeCtl, "manager", name, body)); err != nil {
		return err
	}

	if ln.driver != nil && action == "start" {
		for _, g := range ln.node.Groups() {
			ln.driver.StartGroup(ctx, g)
		}
	}
	return nil
}

type nodeCtlBody struct {
	Action string `json:"action"`
}

// broadcastNodesState fans out a NODES_STATE snapshot to every app that
// registered interest via SubscribeNodesState, per spec.md §4.8's
// periodic/on-change node-state meta-event.
func (mgr *Manager) broadcastNodesState(ctx context.Context) {
	type nodeState struct {
		Name  string `json:"name"`
		State string `json:"state"`
		Link  string `json:"link"`
	}
	mgr.mu.Lock()
	states := make([]nodeState, 0, len(mgr.live))
	for name, ln := range mgr.live {
		states = append(states, nodeState{Name: name, State: ln.node.State().String(), Link: ln.node.Link().String()})
	}
	mgr.mu.Unlock()

	body, _ := json.Marshal(states)
	for _, app := range mgr.subs.NodesStateSubscribers() {
		env := message.New(message.TypeNodesState, "manager", app, body)
		_ = mgr.router.Route(ctx, env)
	}
}
