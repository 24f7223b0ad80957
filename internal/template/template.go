// Package template implements the template manager from spec.md §4.6: a
// reusable (plugin, groups, tags) blueprint that can be replayed into a new
// driver node in one operation. Grounded on the same
// mutex-guarded-map-owned-by-one-component pattern as
// internal/nodemanager/internal/registry/internal/subscription.
package template

import (
	"context"
	"sync"
	"time"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

// Registry is the narrow surface the template manager needs from the
// plugin registry: resolving a driver plugin's descriptor and creating a
// disposable instance to validate tags against. Matches
// internal/registry.Registry's method set.
type Registry interface {
	Find(name string) (*model.PluginEntry, bool)
	CreateInstance(pluginName, nodeName string) (pluginapi.Plugin, error)
	DestroyInstance(pluginName string)
}

// Builder is the surface internal/manager supplies to Instantiate: create
// a live driver node from a plugin, attach a fully built group to it, and
// tear it down again if replay fails partway through.
type Builder interface {
	CreateDriverNode(ctx context.Context, name, pluginName string) error
	AddGroup(ctx context.Context, nodeName string, group *model.Group) error
	DestroyNode(ctx context.Context, name string) error
}

type entry struct {
	tmpl *model.Template
	// validator is a disposable plugin instance held solely so the
	// template manager can invoke the plugin's tag validator when
	// adding/updating tags, per spec.md §4.6. It is never started and
	// never receives node lifecycle calls.
	validator pluginapi.DriverPlugin
}

// Manager holds the template table.
type Manager struct {
	mu        sync.RWMutex
	registry  Registry
	templates map[string]*entry
}

// New constructs an empty template manager backed by registry for plugin
// lookups and validator-instance creation.
func New(registry Registry) *Manager {
	return &Manager{registry: registry, templates: make(map[string]*entry)}
}

// validatorNodeName names the throwaway instance created to validate tags
// against; it is never registered with internal/nodemanager.
func validatorNodeName(templateName string) string {
	return "template-validator:" + templateName
}

// Add registers a new template, validating that pluginName exists, is a
// driver, and supports templating.
func (m *Manager) Add(name, pluginName string) error {
	info, ok := m.registry.Find(pluginName)
	if !ok {
		return gwerrors.NotFound("plugin", pluginName)
	}
	if info.Type != model.NodeTypeDriver {
		return gwerrors.New(gwerrors.PluginNotSupportTemplate, "plugin is not a driver").
			WithDetails("plugin", pluginName)
	}
	if !info.SupportsTemplate {
		return gwerrors.New(gwerrors.PluginNotSupportTemplate, "plugin does not support templating").
			WithDetails("plugin", pluginName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.templates[name]; exists {
		return gwerrors.AlreadyExists("template", name)
	}

	instance, err := m.registry.CreateInstance(pluginName, validatorNodeName(name))
	if err != nil {
		return err
	}
	driverPlugin, ok := instance.(pluginapi.DriverPlugin)
	if !ok {
		m.registry.DestroyInstance(pluginName)
		return gwerrors.New(gwerrors.LibraryModuleInvalid, "plugin does not implement the driver contract").
			WithDetails("plugin", pluginName)
	}

	m.templates[name] = &entry{
		tmpl:      &model.Template{Name: name, PluginName: pluginName},
		validator: driverPlugin,
	}
	return nil
}

// Delete removes a template and releases its validator instance.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[name]
	if !ok {
		return gwerrors.NotFound("template", name)
	}
	m.registry.DestroyInstance(e.tmpl.PluginName)
	delete(m.templates, name)
	return nil
}

// List returns a snapshot of every registered template.
func (m *Manager) List() []*model.Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Template, 0, len(m.templates))
	for _, e := range m.templates {
		out = append(out, cloneTemplate(e.tmpl))
	}
	return out
}

// Get returns a snapshot of a single named template.
func (m *Manager) Get(name string) (*model.Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.templates[name]
	if !ok {
		return nil, false
	}
	return cloneTemplate(e.tmpl), true
}

func cloneTemplate(t *model.Template) *model.Template {
	groups := make([]*model.GroupDef, len(t.Groups))
	for i, g := range t.Groups {
		gc := *g
		tags := make([]*model.TagDef, len(g.Tags))
		for j, tg := range g.Tags {
			tagCopy := *tg
			tags[j] = &tagCopy
		}
		gc.Tags = tags
		groups[i] = &gc
	}
	return &model.Template{Name: t.Name, PluginName: t.PluginName, Groups: groups}
}

// AddGroup inserts a new, empty group definition into a template.
func (m *Manager) AddGroup(templateName string, group *model.GroupDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[templateName]
	if !ok {
		return gwerrors.NotFound("template", templateName)
	}
	if _, exists := e.tmpl.FindGroup(group.Name); exists {
		return gwerrors.AlreadyExists("group", group.Name)
	}
	e.tmpl.Groups = append(e.tmpl.Groups, group)
	return nil
}

// UpdateGroup changes a template group's sampling interval.
func (m *Manager) UpdateGroup(templateName, groupName string, intervalMillis int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[templateName]
	if !ok {
		return gwerrors.NotFound("template", templateName)
	}
	g, ok := e.tmpl.FindGroup(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	g.Interval = intervalMillis
	return nil
}

// DeleteGroup removes a group definition from a template.
func (m *Manager) DeleteGroup(templateName, groupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[templateName]
	if !ok {
		return gwerrors.NotFound("template", templateName)
	}
	for i, g := range e.tmpl.Groups {
		if g.Name == groupName {
			e.tmpl.Groups = append(e.tmpl.Groups[:i], e.tmpl.Groups[i+1:]...)
			return nil
		}
	}
	return gwerrors.NotFound("group", groupName)
}

// AddTag inserts a tag definition into a template group, routed through
// the template's validator plugin instance first.
func (m *Manager) AddTag(ctx context.Context, templateName, groupName string, def *model.TagDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[templateName]
	if !ok {
		return gwerrors.NotFound("template", templateName)
	}
	g, ok := e.tmpl.FindGroup(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	tag := def.ToTag()
	if err := tag.Validate(); err != nil {
		return err
	}
	if err := e.validator.ValidateTag(ctx, tag); err != nil {
		return err
	}
	for _, existing := range g.Tags {
		if existing.Name == def.Name {
			return gwerrors.AlreadyExists("tag", def.Name)
		}
	}
	g.Tags = append(g.Tags, def)
	return nil
}

// UpdateTag replaces a tag definition in place, re-validated through the
// plugin.
func (m *Manager) UpdateTag(ctx context.Context, templateName, groupName string, def *model.TagDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[templateName]
	if !ok {
		return gwerrors.NotFound("template", templateName)
	}
	g, ok := e.tmpl.FindGroup(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	tag := def.ToTag()
	if err := tag.Validate(); err != nil {
		return err
	}
	if err := e.validator.ValidateTag(ctx, tag); err != nil {
		return err
	}
	for i, existing := range g.Tags {
		if existing.Name == def.Name {
			g.Tags[i] = def
			return nil
		}
	}
	return gwerrors.NotFound("tag", def.Name)
}

// DeleteTag removes a tag definition from a template group.
func (m *Manager) DeleteTag(templateName, groupName, tagName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.templates[templateName]
	if !ok {
		return gwerrors.NotFound("template", templateName)
	}
	g, ok := e.tmpl.FindGroup(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	for i, tag := range g.Tags {
		if tag.Name == tagName {
			g.Tags = append(g.Tags[:i], g.Tags[i+1:]...)
			return nil
		}
	}
	return gwerrors.NotFound("tag", tagName)
}

// Instantiate creates a driver node from a template's blueprint via
// builder, then replays every group and tag into it. Any failure during
// replay rolls back by destroying the partially built node, per spec.md
// §4.6's "any failure during replay rolls back" rule.
func (m *Manager) Instantiate(ctx context.Context, builder Builder, templateName, newNodeName string) (err error) {
	m.mu.RLock()
	e, ok := m.templates[templateName]
	if !ok {
		m.mu.RUnlock()
		return gwerrors.NotFound("template", templateName)
	}
	tmpl := cloneTemplate(e.tmpl)
	m.mu.RUnlock()

	if err = builder.CreateDriverNode(ctx, newNodeName, tmpl.PluginName); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			builder.DestroyNode(ctx, newNodeName)
		}
	}()

	for _, gdef := range tmpl.Groups {
		var group *model.Group
		group, err = model.NewGroup(gdef.Name, time.Duration(gdef.Interval)*time.Millisecond)
		if err != nil {
			return err
		}
		for _, tagDef := range gdef.Tags {
			if err = group.AddTag(tagDef.ToTag()); err != nil {
				return err
			}
		}
		if err = builder.AddGroup(ctx, newNodeName, group); err != nil {
			return err
		}
	}
	return nil
}
