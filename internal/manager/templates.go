package manager

import (
	"context"

	"github.com/neuron-gateway/gateway/internal/model"
)

// AddTemplate registers a new template blueprint, per spec.md §4.6's
// add_template(name, plugin).
func (mgr *Manager) AddTemplate(pluginName, name string) error {
	return mgr.templates.Add(name, pluginName)
}

// DelTemplate removes a template and releases its validator instance.
func (mgr *Manager) DelTemplate(name string) error {
	return mgr.templates.Delete(name)
}

// GetTemplates returns a snapshot of every registered template.
func (mgr *Manager) GetTemplates() []*model.Template {
	return mgr.templates.List()
}

// GetTemplate returns a snapshot of a single named template.
func (mgr *Manager) GetTemplate(name string) (*model.Template, bool) {
	return mgr.templates.Get(name)
}

// AddTemplateGroup inserts a new group definition into a template.
func (mgr *Manager) AddTemplateGroup(name string, group *model.GroupDef) error {
	return mgr.templates.AddGroup(name, group)
}

// UpdateTemplateGroup changes a template group's sampling interval.
func (mgr *Manager) UpdateTemplateGroup(name, groupName string, intervalMillis int64) error {
	return mgr.templates.UpdateGroup(name, groupName, intervalMillis)
}

// DelTemplateGroup removes a group definition from a template.
func (mgr *Manager) DelTemplateGroup(name, groupName string) error {
	return mgr.templates.DeleteGroup(name, groupName)
}

// AddTemplateTag inserts a tag definition into a template group, validated
// through the template's throwaway plugin instance.
func (mgr *Manager) AddTemplateTag(ctx context.Context, name, groupName string, def *model.TagDef) error {
	return mgr.templates.AddTag(ctx, name, groupName, def)
}

// UpdateTemplateTag replaces a tag definition in place.
func (mgr *Manager) UpdateTemplateTag(ctx context.Context, name, groupName string, def *model.TagDef) error {
	return mgr.templates.UpdateTag(ctx, name, groupName, def)
}

// DelTemplateTag removes a tag definition from a template group.
func (mgr *Manager) DelTemplateTag(name, groupName, tagName string) error {
	return mgr.templates.DeleteTag(name, groupName, tagName)
}

// InstTemplate replays a template's blueprint into a brand new driver
// node, rolling back entirely on any failure partway through.
func (mgr *Manager) InstTemplate(ctx context.Context, templateName, newNodeName string) error {
	return mgr.templates.Instantiate(ctx, mgr, templateName, newNodeName)
}
