package manager

import (
	"context"
	"time"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/persistence"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

// CreateGroup builds a new group from a bare interval and attaches it to
// a driver node via AddGroup, starting its scheduler timer pair
// immediately if the node is already RUNNING rather than waiting for the
// next node_ctl start.
func (mgr *Manager) CreateGroup(ctx context.Context, nodeName, groupName string, intervalMillis int64) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	if ln.node.Type != model.NodeTypeDriver {
		return gwerrors.New(gwerrors.NodeNotAllowMap, "only driver nodes own groups").WithDetails("node", nodeName)
	}

	group, err := model.NewGroup(groupName, time.Duration(intervalMillis)*time.Millisecond)
	if err != nil {
		return err
	}
	if err := mgr.AddGroup(ctx, nodeName, group); err != nil {
		return err
	}

	if ln.driver != nil && ln.node.State() == model.StateRunning {
		ln.driver.StartGroup(ctx, group)
	}
	return nil
}

// UpdateGroup changes an existing group's sampling interval.
func (mgr *Manager) UpdateGroup(ctx context.Context, nodeName, groupName string, intervalMillis int64) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	group, ok := ln.node.Group(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	if err := group.SetInterval(time.Duration(intervalMillis) * time.Millisecond); err != nil {
		return err
	}
	if mgr.store != nil {
		if err := mgr.store.StoreGroup(ctx, nodeName, persistence.GroupRecord{Name: groupName, IntervalMillis: intervalMillis}); err != nil {
			return err
		}
	}
	if ln.driver != nil && ln.node.State() == model.StateRunning {
		ln.driver.StartGroup(ctx, group)
	}
	return nil
}

// DelGroup detaches a group from a driver node, stopping its scheduler
// timers and cascading into the subscription fabric.
func (mgr *Manager) DelGroup(ctx context.Context, nodeName, groupName string) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	if err := ln.node.DeleteGroup(groupName); err != nil {
		return err
	}
	if ln.driver != nil {
		ln.driver.StopGroup(groupName)
	}
	for _, entry := range mgr.subs.FindByDriver(nodeName) {
		if entry.Group == groupName {
			_ = mgr.subs.Unsubscribe(nodeName, groupName, entry.AppName)
		}
	}
	if mgr.store != nil {
		return mgr.store.DeleteGroup(ctx, nodeName, groupName)
	}
	return nil
}

// AddTag inserts a tag into an existing group, validating it against the
// driver plugin's ValidateTag before it is accepted.
func (mgr *Manager) AddTag(ctx context.Context, nodeName, groupName string, def *model.TagDef) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	if ln.driver == nil {
		return gwerrors.New(gwerrors.NodeNotAllowMap, "only driver nodes own tags").WithDetails("node", nodeName)
	}
	group, ok := ln.node.Group(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}

	tag := def.ToTag()
	if err := tag.Validate(); err != nil {
		return err
	}
	if driverPlugin, ok := ln.plugin.(pluginapi.DriverPlugin); ok {
		if err := driverPlugin.ValidateTag(ctx, tag); err != nil {
			return err
		}
	}
	if err := group.AddTag(tag); err != nil {
		return err
	}
	if mgr.store != nil {
		if err := mgr.store.StoreTag(ctx, nodeName, groupName, def); err != nil {
			_ = group.DeleteTag(tag.Name)
			return err
		}
	}
	mgr.notifySubUpdate(ctx, nodeName, groupName)
	return nil
}

// UpdateTag replaces an existing tag's definition in place.
func (mgr *Manager) UpdateTag(ctx context.Context, nodeName, groupName string, def *model.TagDef) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	group, ok := ln.node.Group(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}

	tag := def.ToTag()
	if err := group.UpdateTag(tag); err != nil {
		return err
	}
	if mgr.store != nil {
		if err := mgr.store.UpdateTag(ctx, nodeName, groupName, def); err != nil {
			return err
		}
	}
	mgr.notifySubUpdate(ctx, nodeName, groupName)
	return nil
}

// DelTag removes a tag from a group.
func (mgr *Manager) DelTag(ctx context.Context, nodeName, groupName, tagName string) error {
	ln, ok := mgr.findLive(nodeName)
	if !ok {
		return gwerrors.NotFound("node", nodeName)
	}
	group, ok := ln.node.Group(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	if err := group.DeleteTag(tagName); err != nil {
		return err
	}
	if mgr.store != nil {
		if err := mgr.store.DeleteTag(ctx, nodeName, groupName, tagName); err != nil {
			return err
		}
	}
	mgr.notifySubUpdate(ctx, nodeName, groupName)
	return nil
}

// notifySubUpdate tells every app subscribed to (driver, group) that its
// tag set changed shape and it should resync, per spec.md §4.8's
// stateful-request dispatch rule.
func (mgr *Manager) notifySubUpdate(ctx context.Context, driver, group string) {
	for _, d := range mgr.subs.Find(driver, group) {
		env := message.New(message.TypeNotifySubUpdate, "manager", d.AppName, nil)
		_ = mgr.router.Route(ctx, env)
	}
}
