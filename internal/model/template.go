package model

// TagDef is a tag definition within a template's group, prior to
// instantiation into a live Tag on a real node.
type TagDef struct {
	Name        string
	Address     string
	Description string
	Type        TagType
	Attribute   TagAttribute
	Precision   *int
	Decimal     *float64
}

// ToTag converts a template tag definition into a live Tag.
func (d *TagDef) ToTag() *Tag {
	return &Tag{
		Name:        d.Name,
		Address:     d.Address,
		Description: d.Description,
		Type:        d.Type,
		Attribute:   d.Attribute,
		Precision:   d.Precision,
		Decimal:     d.Decimal,
	}
}

// GroupDef is a group definition within a template.
type GroupDef struct {
	Name     string
	Interval int64 // milliseconds
	Tags     []*TagDef
}

// Template is a detached (plugin, [group definitions]) blueprint used to
// clone a driver node with its entire group/tag tree in one operation.
type Template struct {
	Name       string
	PluginName string
	Groups     []*GroupDef
}

// FindGroup returns a template's group definition by name.
func (t *Template) FindGroup(name string) (*GroupDef, bool) {
	for _, g := range t.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}
