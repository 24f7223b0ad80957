package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/subscription"
)

// newTestStore opens a real PostgreSQL connection for integration
// testing, skipping unless TEST_POSTGRES_DSN is set. Grounded on the
// teacher's internal/app/storage/postgres/store_test_helpers.go.
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := resetTables(store.db); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	t.Cleanup(func() {
		_ = resetTables(store.db)
		_ = store.Close()
	})
	return store, ctx
}

func resetTables(db *sql.DB) error {
	_, err := db.Exec(`TRUNCATE subscriptions, tags, groups, node_settings, nodes, plugins RESTART IDENTITY CASCADE`)
	return err
}

func TestStore_PluginRoundTrip(t *testing.T) {
	store, ctx := newTestStore(t)

	entry := &model.PluginEntry{
		ModuleName:       "modbus-tcp",
		Description:      "Modbus TCP driver",
		Kind:             model.PluginKindStatic,
		Type:             model.NodeTypeDriver,
		Version:          model.Version{Major: 1, Minor: 2, Patch: 0},
		SupportsTemplate: true,
	}
	if err := store.StorePlugins(ctx, []*model.PluginEntry{entry}); err != nil {
		t.Fatalf("StorePlugins() error = %v", err)
	}

	list, err := store.LoadPlugins(ctx)
	if err != nil {
		t.Fatalf("LoadPlugins() error = %v", err)
	}
	if len(list) != 1 || list[0].ModuleName != "modbus-tcp" || !list[0].SupportsTemplate {
		t.Fatalf("LoadPlugins() = %+v", list)
	}

	if err := store.DeletePlugin(ctx, "modbus-tcp"); err != nil {
		t.Fatalf("DeletePlugin() error = %v", err)
	}
	list, _ = store.LoadPlugins(ctx)
	if len(list) != 0 {
		t.Fatalf("plugin survived DeletePlugin(): %+v", list)
	}
}

func TestStore_NodeAndSettingRoundTrip(t *testing.T) {
	store, ctx := newTestStore(t)
	store.StorePlugins(ctx, []*model.PluginEntry{{ModuleName: "modbus-tcp", Type: model.NodeTypeDriver, Kind: model.PluginKindStatic}})

	node := NodeRecord{Name: "d1", PluginName: "modbus-tcp", Type: model.NodeTypeDriver, Address: "tcp://d1", Running: true}
	if err := store.StoreNode(ctx, node); err != nil {
		t.Fatalf("StoreNode() error = %v", err)
	}

	nodes, err := store.LoadNodes(ctx)
	if err != nil {
		t.Fatalf("LoadNodes() error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "d1" || !nodes[0].Running {
		t.Fatalf("LoadNodes() = %+v", nodes)
	}

	if _, err := store.LoadNodeSetting(ctx, "d1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("LoadNodeSetting() before store error = %v, want sql.ErrNoRows", err)
	}
	if err := store.StoreNodeSetting(ctx, "d1", []byte(`{"host":"10.0.0.1"}`)); err != nil {
		t.Fatalf("StoreNodeSetting() error = %v", err)
	}
	blob, err := store.LoadNodeSetting(ctx, "d1")
	if err != nil || string(blob) != `{"host":"10.0.0.1"}` {
		t.Fatalf("LoadNodeSetting() = %s, %v", blob, err)
	}

	if err := store.DeleteNode(ctx, "d1"); err != nil {
		t.Fatalf("DeleteNode() error = %v", err)
	}
	nodes, _ = store.LoadNodes(ctx)
	if len(nodes) != 0 {
		t.Fatalf("node survived DeleteNode(): %+v", nodes)
	}
}

func TestStore_GroupAndTagRoundTrip(t *testing.T) {
	store, ctx := newTestStore(t)
	store.StorePlugins(ctx, []*model.PluginEntry{{ModuleName: "modbus-tcp", Type: model.NodeTypeDriver, Kind: model.PluginKindStatic}})
	store.StoreNode(ctx, NodeRecord{Name: "d1", PluginName: "modbus-tcp", Type: model.NodeTypeDriver})

	if err := store.StoreGroup(ctx, "d1", GroupRecord{Name: "g1", IntervalMillis: 1000}); err != nil {
		t.Fatalf("StoreGroup() error = %v", err)
	}
	groups, err := store.LoadGroups(ctx, "d1")
	if err != nil || len(groups) != 1 || groups[0].IntervalMillis != 1000 {
		t.Fatalf("LoadGroups() = %+v, %v", groups, err)
	}

	tag := &model.TagDef{Name: "t1", Address: "1!400001", Type: model.TypeInt16, Attribute: model.AttrReadable}
	if err := store.StoreTag(ctx, "d1", "g1", tag); err != nil {
		t.Fatalf("StoreTag() error = %v", err)
	}
	tags, err := store.LoadTags(ctx, "d1", "g1")
	if err != nil || len(tags) != 1 || tags[0].Name != "t1" {
		t.Fatalf("LoadTags() = %+v, %v", tags, err)
	}

	tag.Address = "1!400002"
	if err := store.UpdateTag(ctx, "d1", "g1", tag); err != nil {
		t.Fatalf("UpdateTag() error = %v", err)
	}
	tags, _ = store.LoadTags(ctx, "d1", "g1")
	if tags[0].Address != "1!400002" {
		t.Fatalf("UpdateTag() did not persist, got %+v", tags[0])
	}

	if err := store.DeleteTag(ctx, "d1", "g1", "t1"); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	tags, _ = store.LoadTags(ctx, "d1", "g1")
	if len(tags) != 0 {
		t.Fatalf("tag survived DeleteTag(): %+v", tags)
	}

	if err := store.DeleteGroup(ctx, "d1", "g1"); err != nil {
		t.Fatalf("DeleteGroup() error = %v", err)
	}
	groups, _ = store.LoadGroups(ctx, "d1")
	if len(groups) != 0 {
		t.Fatalf("group survived DeleteGroup(): %+v", groups)
	}
}

func TestStore_SubscriptionRoundTrip(t *testing.T) {
	store, ctx := newTestStore(t)

	list := []subscription.Entry{
		{Driver: "d1", Group: "g1", Delivery: subscription.Delivery{AppName: "app1", Params: json.RawMessage(`{"x":1}`), StaticTags: []subscription.StaticTag{{Name: "site", Value: "plant-a"}}, Addr: "tcp://app1"}},
		{Driver: "d1", Group: "g2", Delivery: subscription.Delivery{AppName: "app1", Params: json.RawMessage(`{}`)}},
	}
	if err := store.StoreSubscriptions(ctx, "app1", list); err != nil {
		t.Fatalf("StoreSubscriptions() error = %v", err)
	}

	loaded, err := store.LoadSubscriptions(ctx, "app1")
	if err != nil || len(loaded) != 2 {
		t.Fatalf("LoadSubscriptions() = %+v, %v", loaded, err)
	}

	if err := store.StoreSubscriptions(ctx, "app1", nil); err != nil {
		t.Fatalf("StoreSubscriptions(nil) error = %v", err)
	}
	loaded, _ = store.LoadSubscriptions(ctx, "app1")
	if len(loaded) != 0 {
		t.Fatalf("subscriptions survived replace-with-empty: %+v", loaded)
	}
}
