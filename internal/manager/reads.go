package manager

import (
	"context"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
)

// ReadGroup synchronously assembles a trans-data frame from a driver's tag
// cache, satisfying spec.md §4.8's REQ_READ_GROUP node-addressed forward.
func (mgr *Manager) ReadGroup(nodeName, groupName string) (*model.TransData, error) {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return nil, gwerrors.NotFound("node", nodeName)
	}
	if ln.driver == nil {
		return nil, gwerrors.New(gwerrors.NodeNotAllowMap, "only driver nodes serve reads").WithDetails("node", nodeName)
	}
	return ln.driver.ReadGroup(groupName)
}

// WriteTag forwards a single-tag write to a driver node's write path.
func (mgr *Manager) WriteTag(ctx context.Context, nodeName, reqID, groupName, tagName string, value interface{}) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	if ln.driver == nil {
		return gwerrors.New(gwerrors.NodeNotAllowMap, "only driver nodes accept writes").WithDetails("node", nodeName)
	}
	return ln.driver.WriteTag(ctx, reqID, groupName, tagName, value)
}

// WriteTags forwards a multi-tag write to a driver node's write path,
// returning a per-tag error map for partial failures.
func (mgr *Manager) WriteTags(ctx context.Context, nodeName, reqID, groupName string, values map[string]interface{}) (map[string]error, error) {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return nil, gwerrors.NotFound("node", nodeName)
	}
	if ln.driver == nil {
		return nil, gwerrors.New(gwerrors.NodeNotAllowMap, "only driver nodes accept writes").WithDetails("node", nodeName)
	}
	return ln.driver.WriteTags(ctx, reqID, groupName, values)
}

// GetNodeState reports a live node's running/link state, satisfying
// spec.md §4.8's REQ_GET_NODE_STATE forward.
func (mgr *Manager) GetNodeState(nodeName string) (model.RunningState, model.LinkState, error) {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return 0, 0, gwerrors.NotFound("node", nodeName)
	}
	return ln.node.State(), ln.node.Link(), nil
}

// GetNodeSetting returns a node's currently accepted settings blob.
func (mgr *Manager) GetNodeSetting(nodeName string) ([]byte, error) {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return nil, gwerrors.NotFound("node", nodeName)
	}
	return ln.node.Setting(), nil
}

// GetGroup returns a live driver node's group by name.
func (mgr *Manager) GetGroup(nodeName, groupName string) (*model.Group, error) {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return nil, gwerrors.NotFound("node", nodeName)
	}
	group, ok := ln.node.Group(groupName)
	if !ok {
		return nil, gwerrors.NotFound("group", groupName)
	}
	return group, nil
}

// GetGroups returns every group owned by a live driver node.
func (mgr *Manager) GetGroups(nodeName string) ([]*model.Group, error) {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return nil, gwerrors.NotFound("node", nodeName)
	}
	return ln.node.Groups(), nil
}

// GetTag returns a single tag's definition from a live driver node's group.
func (mgr *Manager) GetTag(nodeName, groupName, tagName string) (*model.Tag, error) {
	group, err := mgr.GetGroup(nodeName, groupName)
	if err != nil {
		return nil, err
	}
	tag, ok := group.GetTag(tagName)
	if !ok {
		return nil, gwerrors.NotFound("tag", tagName)
	}
	return tag, nil
}

// GetSubscribeGroup returns the names of the apps subscribed to one group
// of a driver node.
func (mgr *Manager) GetSubscribeGroup(driver, group string) []string {
	var apps []string
	for _, d := range mgr.subs.Find(driver, group) {
		apps = append(apps, d.AppName)
	}
	return apps
}

// GetNode returns the live node record for name, for node-detail queries.
func (mgr *Manager) GetNode(name string) (*model.Node, error) {
	ln, ok := mgr.findLive(name)
	if !ok {
		return nil, gwerrors.NotFound("node", name)
	}
	return ln.node, nil
}

// GetNodes returns every live node, optionally filtered by type.
func (mgr *Manager) GetNodes(typeFilter *model.NodeType) []*model.Node {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make([]*model.Node, 0, len(mgr.live))
	for _, ln := range mgr.live {
		if typeFilter != nil && ln.node.Type != *typeFilter {
			continue
		}
		out = append(out, ln.node)
	}
	return out
}
