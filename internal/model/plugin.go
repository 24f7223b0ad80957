package model

import (
	"fmt"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

// PluginKind distinguishes statically linked plugins shipped with the
// gateway from system plugins and user-installed custom plugins. Go has no
// dlopen; "kind" still gates delete protection and instance creation
// behavior (see internal/registry).
type PluginKind int

const (
	PluginKindStatic PluginKind = iota
	PluginKindSystem
	PluginKindCustom
)

func (k PluginKind) String() string {
	switch k {
	case PluginKindStatic:
		return "static"
	case PluginKindSystem:
		return "system"
	case PluginKindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Version is a plugin's major.minor.patch version. Host compatibility
// requires major and minor to match exactly; patch is informational.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CompatibleWith reports whether this module version satisfies the host's
// required major.minor.
func (v Version) CompatibleWith(host Version) bool {
	return v.Major == host.Major && v.Minor == host.Minor
}

// PluginEntry describes one loaded plugin module.
type PluginEntry struct {
	ModuleName  string
	Description string
	LibraryPath string
	Kind        PluginKind
	Type        NodeType
	Version     Version
	Schema      string
	Display     bool
	Single      bool
	SingleName  string

	// SupportsTemplate reports whether this driver plugin can be used to
	// instantiate nodes from a template (internal/template). Only
	// meaningful when Type == NodeTypeDriver.
	SupportsTemplate bool
}

// Validate checks the entry's shape invariants.
func (p *PluginEntry) Validate() error {
	if p.ModuleName == "" {
		return gwerrors.New(gwerrors.ParamIsWrong, "plugin module name is required")
	}
	if len(p.ModuleName) > MaxPluginNameLen {
		return gwerrors.New(gwerrors.ParamIsWrong, fmt.Sprintf("plugin name exceeds %d bytes", MaxPluginNameLen)).
			WithDetails("plugin", p.ModuleName)
	}
	if len(p.LibraryPath) > MaxPluginLibraryLen {
		return gwerrors.New(gwerrors.ParamIsWrong, fmt.Sprintf("plugin library path exceeds %d bytes", MaxPluginLibraryLen)).
			WithDetails("plugin", p.ModuleName)
	}
	if len(p.Description) > MaxPluginDescLen {
		return gwerrors.New(gwerrors.ParamIsWrong, fmt.Sprintf("plugin description exceeds %d bytes", MaxPluginDescLen)).
			WithDetails("plugin", p.ModuleName)
	}
	if p.Kind != PluginKindSystem && p.Kind != PluginKindCustom && p.Kind != PluginKindStatic {
		return gwerrors.New(gwerrors.LibraryModuleInvalid, "plugin kind must be static, system, or custom").
			WithDetails("plugin", p.ModuleName)
	}
	if p.Type != NodeTypeDriver && p.Type != NodeTypeApp {
		return gwerrors.New(gwerrors.LibraryModuleInvalid, "plugin type must be driver or app").
			WithDetails("plugin", p.ModuleName)
	}
	return nil
}

// Clone returns a shallow copy (all fields are value types).
func (p *PluginEntry) Clone() *PluginEntry {
	clone := *p
	return &clone
}
