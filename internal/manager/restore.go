package manager

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/persistence"
)

// Restore replays the persisted plugin/node/group/tag/subscription state
// back into a freshly constructed, not-yet-started manager, per spec.md
// §4.7's restart sequence: plugins first (metadata only, applied to
// plugins already added to the registry), then nodes, then each node's
// settings/groups/tags once its plugin is live, then subscriptions once
// every node has an address. A NotFound-class load failure at any step
// means "nothing persisted yet," not fatal. A failure to load the plugin
// or node lists, or a cancelled ctx while waiting for addresses, aborts
// the sequence; a node that cannot be recreated, and a failure while
// restoring one node's state or subscriptions, is logged and skipped.
func (mgr *Manager) Restore(ctx context.Context) error {
	if mgr.store == nil {
		return nil
	}

	if err := mgr.restorePlugins(ctx); err != nil {
		return err
	}
	nodeRecords, err := mgr.restoreNodes(ctx)
	if err != nil {
		return err
	}
	for _, rec := range nodeRecords {
		if err := mgr.restoreNodeState(ctx, rec); err != nil {
			mgr.Logger().WithContext(ctx).WithError(err).WithField("node", rec.Name).
				Warn("failed to restore node state")
		}
	}
	if err := mgr.waitForAddresses(ctx); err != nil {
		return err
	}
	for _, rec := range nodeRecords {
		if rec.Type != model.NodeTypeApp {
			continue
		}
		if err := mgr.restoreSubscriptions(ctx, rec.Name); err != nil {
			mgr.Logger().WithContext(ctx).WithError(err).WithField("node", rec.Name).
				Warn("failed to restore subscriptions")
		}
	}
	return nil
}

func (mgr *Manager) restorePlugins(ctx context.Context) error {
	entries, err := mgr.store.LoadPlugins(ctx)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		// Update replaces the descriptor of a plugin already added to the
		// registry with the persisted one and keeps its factory (nil here).
		// A persisted plugin the registry does not hold is skipped: Update
		// returns NotFound, which is ignored.
		_ = mgr.registry.Update(*entry, nil)
	}
	return nil
}

func (mgr *Manager) restoreNodes(ctx context.Context) ([]persistence.NodeRecord, error) {
	records, err := mgr.store.LoadNodes(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]persistence.NodeRecord, 0, len(records))
	for _, rec := range records {
		if _, err := mgr.createNode(ctx, rec.Name, rec.PluginName, rec.IsMonitor); err != nil {
			mgr.Logger().WithContext(ctx).WithError(err).WithField("node", rec.Name).
				Warn("failed to recreate node from persisted record")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (mgr *Manager) restoreNodeState(ctx context.Context, rec persistence.NodeRecord) error {
	ln, ok := mgr.findLive(rec.Name)
	if !ok {
		return nil
	}

	setting, err := mgr.store.LoadNodeSetting(ctx, rec.Name)
	switch {
	case isNotFound(err):
	case err != nil:
		return err
	default:
		if err := ln.receiver().Send(ctx, message.New(message.TypeReqNodeSetting, "manager", rec.Name, setting)); err != nil {
			return err
		}
	}

	if rec.Type == model.NodeTypeDriver {
		groups, err := mgr.store.LoadGroups(ctx, rec.Name)
		if err != nil && !isNotFound(err) {
			return err
		}
		for _, g := range groups {
			group, err := model.NewGroup(g.Name, time.Duration(g.IntervalMillis)*time.Millisecond)
			if err != nil {
				continue
			}
			tags, err := mgr.store.LoadTags(ctx, rec.Name, g.Name)
			if err != nil && !isNotFound(err) {
				return err
			}
			for _, tagDef := range tags {
				_ = group.AddTag(tagDef.ToTag())
			}
			_ = ln.node.AddGroup(group)
		}
	}

	if rec.Running {
		return mgr.NodeCtl(ctx, rec.Name, "start")
	}
	return nil
}

func (mgr *Manager) waitForAddresses(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for mgr.nodes.ExistsUninit() {
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func (mgr *Manager) restoreSubscriptions(ctx context.Context, app string) error {
	entries, err := mgr.store.LoadSubscriptions(ctx, app)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	appLive, ok := mgr.findLive(app)
	if !ok {
		return nil
	}
	for _, e := range entries {
		_ = mgr.subs.Subscribe(e.Driver, e.Group, app, e.Params, e.StaticTags, appLive.node.Address())
	}
	return nil
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}
