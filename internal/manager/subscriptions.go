package manager

import (
	"context"
	"encoding/json"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/subscription"
)

// Subscribe registers app's interest in (driver, group), validating both
// ends exist and that group is actually eligible for delivery.
func (mgr *Manager) Subscribe(ctx context.Context, driver, group, app string, params json.RawMessage, staticTags []subscription.StaticTag) error {
	driverLive, ok := mgr.findLive(driver)
	if !ok || driverLive.node.Type != model.NodeTypeDriver {
		return gwerrors.NotFound("node", driver)
	}
	if _, ok := driverLive.node.Group(group); !ok {
		return gwerrors.NotFound("group", group)
	}
	appLive, ok := mgr.findLive(app)
	if !ok || appLive.node.Type != model.NodeTypeApp {
		return gwerrors.NotFound("node", app)
	}

	if err := mgr.subs.Subscribe(driver, group, app, params, staticTags, appLive.node.Address()); err != nil {
		return err
	}
	if mgr.store != nil {
		return mgr.store.StoreSubscriptions(ctx, app, mgr.subs.Get(app))
	}
	return nil
}

// Unsubscribe removes app's subscription to (driver, group).
func (mgr *Manager) Unsubscribe(ctx context.Context, driver, group, app string) error {
	if err := mgr.subs.Unsubscribe(driver, group, app); err != nil {
		return err
	}
	if mgr.store != nil {
		return mgr.store.StoreSubscriptions(ctx, app, mgr.subs.Get(app))
	}
	return nil
}

// UpdateSubscribeGroup mutates an existing subscription's params and static
// tags (synthetic name/value pairs appended to each delivered frame) in
// place.
func (mgr *Manager) UpdateSubscribeGroup(ctx context.Context, driver, group, app string, params json.RawMessage, staticTags []subscription.StaticTag) error {
	if err := mgr.subs.UpdateParams(app, driver, group, params, staticTags); err != nil {
		return err
	}
	if mgr.store != nil {
		return mgr.store.StoreSubscriptions(ctx, app, mgr.subs.Get(app))
	}
	return nil
}

// GetSubscribeGroups returns every subscription app currently holds.
func (mgr *Manager) GetSubscribeGroups(app string) []subscription.Entry {
	return mgr.subs.Get(app)
}

// SubscribeNodesState registers app to receive periodic NODES_STATE
// broadcasts, per spec.md §4.8's node-state meta-event subscription.
func (mgr *Manager) SubscribeNodesState(app string) {
	mgr.subs.SubscribeNodesState(app)
}

// UnsubscribeNodesState removes app from the NODES_STATE broadcast set.
func (mgr *Manager) UnsubscribeNodesState(app string) {
	mgr.subs.UnsubscribeNodesState(app)
}
