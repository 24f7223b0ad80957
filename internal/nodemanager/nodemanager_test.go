package nodemanager

import (
	"testing"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
)

type fakeAdapter struct {
	node *model.Node
}

func (f *fakeAdapter) Node() *model.Node { return f.node }

func newEntry(t *testing.T, name string, typ model.NodeType, plugin string, monitor bool) *Entry {
	t.Helper()
	n, err := model.NewNode(name, plugin, typ)
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	return &Entry{Adapter: &fakeAdapter{node: n}, IsMonitor: monitor}
}

func TestManager_AddAndFind(t *testing.T) {
	m := New()
	if err := m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, ok := m.Find("d1"); !ok {
		t.Fatal("Find() = false, want true")
	}
}

func TestManager_AddDuplicateRejected(t *testing.T) {
	m := New()
	m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false))
	err := m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false))
	if !gwerrors.Is(err, gwerrors.NodeExist) {
		t.Fatalf("expected NODE_EXIST, got %v", err)
	}
}

func TestManager_UpdateName(t *testing.T) {
	m := New()
	m.Add("old", newEntry(t, "old", model.NodeTypeDriver, "p-modbus", false))
	if err := m.UpdateName("old", "new"); err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}
	if _, ok := m.Find("old"); ok {
		t.Fatal("old name still present after rename")
	}
	if _, ok := m.Find("new"); !ok {
		t.Fatal("new name missing after rename")
	}
}

func TestManager_UpdateNameCollision(t *testing.T) {
	m := New()
	m.Add("a", newEntry(t, "a", model.NodeTypeDriver, "p-modbus", false))
	m.Add("b", newEntry(t, "b", model.NodeTypeDriver, "p-modbus", false))
	if err := m.UpdateName("a", "b"); !gwerrors.Is(err, gwerrors.NodeExist) {
		t.Fatalf("expected NODE_EXIST, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	m := New()
	m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false))
	if err := m.Delete("d1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := m.Find("d1"); ok {
		t.Fatal("Find() = true after Delete()")
	}
}

func TestManager_FilterByTypeAndPlugin(t *testing.T) {
	m := New()
	m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false))
	m.Add("a1", newEntry(t, "a1", model.NodeTypeApp, "p-mqtt", false))

	drivers := m.Filter(typePtr(model.NodeTypeDriver), "", "")
	if len(drivers) != 1 {
		t.Fatalf("Filter(driver) = %d entries, want 1", len(drivers))
	}

	byPlugin := m.Filter(nil, "p-mqtt", "")
	if len(byPlugin) != 1 {
		t.Fatalf("Filter(plugin) = %d entries, want 1", len(byPlugin))
	}

	byName := m.Filter(nil, "", "d1")
	if len(byName) != 1 {
		t.Fatalf("Filter(substr) = %d entries, want 1", len(byName))
	}
}

func TestManager_GetAddrs(t *testing.T) {
	m := New()
	e := newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false)
	e.Address = "tcp://127.0.0.1:1234"
	m.Add("d1", e)

	addrs := m.GetAddrs(nil)
	if len(addrs) != 1 || addrs[0] != "tcp://127.0.0.1:1234" {
		t.Fatalf("GetAddrs() = %v, want [tcp://127.0.0.1:1234]", addrs)
	}
}

func TestManager_ExistsUninit(t *testing.T) {
	m := New()
	m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false))
	if !m.ExistsUninit() {
		t.Fatal("ExistsUninit() = false, want true before address is set")
	}
	m.UpdateAddress("d1", "tcp://127.0.0.1:1234")
	if m.ExistsUninit() {
		t.Fatal("ExistsUninit() = true, want false after address is set")
	}
}

func TestManager_ForEachMonitor(t *testing.T) {
	m := New()
	m.Add("app1", newEntry(t, "app1", model.NodeTypeApp, "p-mqtt", true))
	m.Add("d1", newEntry(t, "d1", model.NodeTypeDriver, "p-modbus", false))

	var seen []string
	m.ForEachMonitor(func(name string, e *Entry) { seen = append(seen, name) })

	if len(seen) != 1 || seen[0] != "app1" {
		t.Fatalf("ForEachMonitor() visited %v, want [app1]", seen)
	}
}

func typePtr(t model.NodeType) *model.NodeType { return &t }
