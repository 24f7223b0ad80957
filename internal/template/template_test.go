package template

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

type fakeDriverPlugin struct {
	rejectTagName string
}

func (p *fakeDriverPlugin) Init(ctx context.Context) error                            { return nil }
func (p *fakeDriverPlugin) Uninit(ctx context.Context) error                           { return nil }
func (p *fakeDriverPlugin) Setting(ctx context.Context, raw json.RawMessage) error     { return nil }
func (p *fakeDriverPlugin) Start(ctx context.Context) error                            { return nil }
func (p *fakeDriverPlugin) Stop(ctx context.Context) error                             { return nil }
func (p *fakeDriverPlugin) Request(ctx context.Context, head message.Head, body []byte) error {
	return nil
}
func (p *fakeDriverPlugin) ValidateTag(ctx context.Context, tag *model.Tag) error {
	if tag.Name == p.rejectTagName {
		return gwerrors.New(gwerrors.ParamIsWrong, "tag rejected by plugin").WithDetails("tag", tag.Name)
	}
	return nil
}
func (p *fakeDriverPlugin) GroupSync(ctx context.Context, group *model.Group) error  { return nil }
func (p *fakeDriverPlugin) GroupTimer(ctx context.Context, group *model.Group) error { return nil }
func (p *fakeDriverPlugin) WriteTag(ctx context.Context, reqID string, group, tag string, value interface{}) error {
	return nil
}
func (p *fakeDriverPlugin) WriteTags(ctx context.Context, reqID, group string, values map[string]interface{}) error {
	return nil
}

type fakeRegistry struct {
	entries   map[string]*model.PluginEntry
	instances map[string]*fakeDriverPlugin
	destroyed []string
	failCreate bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		entries:   make(map[string]*model.PluginEntry),
		instances: make(map[string]*fakeDriverPlugin),
	}
}

func (r *fakeRegistry) Find(name string) (*model.PluginEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

func (r *fakeRegistry) CreateInstance(pluginName, nodeName string) (pluginapi.Plugin, error) {
	if r.failCreate {
		return nil, gwerrors.Internal("instance creation failed", nil)
	}
	inst := &fakeDriverPlugin{}
	r.instances[pluginName] = inst
	return inst, nil
}

func (r *fakeRegistry) DestroyInstance(pluginName string) {
	r.destroyed = append(r.destroyed, pluginName)
	delete(r.instances, pluginName)
}

func (r *fakeRegistry) addDriver(name string, supportsTemplate bool) {
	r.entries[name] = &model.PluginEntry{
		ModuleName:       name,
		Type:             model.NodeTypeDriver,
		Kind:             model.PluginKindStatic,
		SupportsTemplate: supportsTemplate,
	}
}

type fakeBuilder struct {
	created    []string
	destroyed  []string
	groups     map[string][]*model.Group
	failCreate bool
	failAddGroup string // group name at which AddGroup fails
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{groups: make(map[string][]*model.Group)}
}

func (b *fakeBuilder) CreateDriverNode(ctx context.Context, name, pluginName string) error {
	if b.failCreate {
		return gwerrors.Internal("node creation failed", nil)
	}
	b.created = append(b.created, name)
	return nil
}

func (b *fakeBuilder) AddGroup(ctx context.Context, nodeName string, group *model.Group) error {
	if group.Name == b.failAddGroup {
		return gwerrors.Internal("add group failed", nil)
	}
	b.groups[nodeName] = append(b.groups[nodeName], group)
	return nil
}

func (b *fakeBuilder) DestroyNode(ctx context.Context, name string) error {
	b.destroyed = append(b.destroyed, name)
	return nil
}

func TestManager_AddRejectsNonDriverPlugin(t *testing.T) {
	reg := newFakeRegistry()
	reg.entries["p-app"] = &model.PluginEntry{ModuleName: "p-app", Type: model.NodeTypeApp}
	m := New(reg)

	err := m.Add("tmpl1", "p-app")
	if !gwerrors.Is(err, gwerrors.PluginNotSupportTemplate) {
		t.Fatalf("Add() error = %v, want PLUGIN_NOT_SUPPORT_TEMPLATE", err)
	}
}

func TestManager_AddRejectsUnsupportedTemplate(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", false)
	m := New(reg)

	err := m.Add("tmpl1", "p-modbus")
	if !gwerrors.Is(err, gwerrors.PluginNotSupportTemplate) {
		t.Fatalf("Add() error = %v, want PLUGIN_NOT_SUPPORT_TEMPLATE", err)
	}
}

func TestManager_AddAndGet(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)

	if err := m.Add("tmpl1", "p-modbus"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	tmpl, ok := m.Get("tmpl1")
	if !ok || tmpl.PluginName != "p-modbus" {
		t.Fatalf("Get() = %+v, %v", tmpl, ok)
	}
	if _, ok := reg.instances["p-modbus"]; !ok {
		t.Fatal("expected a validator instance to be created")
	}
}

func TestManager_AddDuplicateRejected(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)
	m.Add("tmpl1", "p-modbus")

	err := m.Add("tmpl1", "p-modbus")
	if !gwerrors.Is(err, gwerrors.TemplateExist) {
		t.Fatalf("Add() error = %v, want TEMPLATE_EXIST", err)
	}
}

func TestManager_DeleteReleasesValidator(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)
	m.Add("tmpl1", "p-modbus")

	if err := m.Delete("tmpl1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(reg.destroyed) != 1 || reg.destroyed[0] != "p-modbus" {
		t.Fatalf("destroyed = %v, want [p-modbus]", reg.destroyed)
	}
	if _, ok := m.Get("tmpl1"); ok {
		t.Fatal("template survived Delete()")
	}
}

func TestManager_GroupAndTagLifecycle(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)
	m.Add("tmpl1", "p-modbus")

	if err := m.AddGroup("tmpl1", &model.GroupDef{Name: "g1", Interval: 1000}); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}
	if err := m.AddGroup("tmpl1", &model.GroupDef{Name: "g1", Interval: 1000}); !gwerrors.Is(err, gwerrors.GroupExist) {
		t.Fatalf("AddGroup() duplicate error = %v, want GROUP_EXIST", err)
	}

	tagDef := &model.TagDef{Name: "t1", Address: "1!400001", Type: model.TypeInt16, Attribute: model.AttrReadable}
	if err := m.AddTag(context.Background(), "tmpl1", "g1", tagDef); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}

	tmpl, _ := m.Get("tmpl1")
	group, ok := tmpl.FindGroup("g1")
	if !ok || len(group.Tags) != 1 || group.Tags[0].Name != "t1" {
		t.Fatalf("FindGroup() = %+v, %v", group, ok)
	}

	if err := m.DeleteTag("tmpl1", "g1", "t1"); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	tmpl, _ = m.Get("tmpl1")
	group, _ = tmpl.FindGroup("g1")
	if len(group.Tags) != 0 {
		t.Fatalf("group still has tags after DeleteTag(): %+v", group.Tags)
	}

	if err := m.DeleteGroup("tmpl1", "g1"); err != nil {
		t.Fatalf("DeleteGroup() error = %v", err)
	}
	tmpl, _ = m.Get("tmpl1")
	if _, ok := tmpl.FindGroup("g1"); ok {
		t.Fatal("group survived DeleteGroup()")
	}
}

func TestManager_AddTagRejectedByPlugin(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)
	m.Add("tmpl1", "p-modbus")
	m.AddGroup("tmpl1", &model.GroupDef{Name: "g1", Interval: 1000})
	reg.instances["p-modbus"].rejectTagName = "bad-tag"

	tagDef := &model.TagDef{Name: "bad-tag", Address: "1!400001", Type: model.TypeInt16, Attribute: model.AttrReadable}
	err := m.AddTag(context.Background(), "tmpl1", "g1", tagDef)
	if err == nil {
		t.Fatal("expected plugin validation failure")
	}
}

func TestManager_InstantiateReplaysGroupsAndTags(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)
	m.Add("tmpl1", "p-modbus")
	m.AddGroup("tmpl1", &model.GroupDef{Name: "g1", Interval: 1000})
	m.AddTag(context.Background(), "tmpl1", "g1", &model.TagDef{
		Name: "t1", Address: "1!400001", Type: model.TypeInt16, Attribute: model.AttrReadable,
	})

	builder := newFakeBuilder()
	if err := m.Instantiate(context.Background(), builder, "tmpl1", "node-new"); err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	if len(builder.created) != 1 || builder.created[0] != "node-new" {
		t.Fatalf("created = %v, want [node-new]", builder.created)
	}
	groups := builder.groups["node-new"]
	if len(groups) != 1 || groups[0].Name != "g1" {
		t.Fatalf("groups = %+v, want one group g1", groups)
	}
	if len(builder.destroyed) != 0 {
		t.Fatalf("DestroyNode called unexpectedly: %v", builder.destroyed)
	}
}

func TestManager_InstantiateRollsBackOnGroupFailure(t *testing.T) {
	reg := newFakeRegistry()
	reg.addDriver("p-modbus", true)
	m := New(reg)
	m.Add("tmpl1", "p-modbus")
	m.AddGroup("tmpl1", &model.GroupDef{Name: "g1", Interval: 1000})

	builder := newFakeBuilder()
	builder.failAddGroup = "g1"

	err := m.Instantiate(context.Background(), builder, "tmpl1", "node-new")
	if err == nil {
		t.Fatal("expected Instantiate() to fail")
	}
	if len(builder.destroyed) != 1 || builder.destroyed[0] != "node-new" {
		t.Fatalf("destroyed = %v, want rollback of node-new", builder.destroyed)
	}
}

func TestManager_InstantiateMissingTemplate(t *testing.T) {
	reg := newFakeRegistry()
	m := New(reg)
	builder := newFakeBuilder()

	err := m.Instantiate(context.Background(), builder, "missing", "node-new")
	if !gwerrors.Is(err, gwerrors.TemplateNotFound) {
		t.Fatalf("Instantiate() error = %v, want TEMPLATE_NOT_FOUND", err)
	}
}
