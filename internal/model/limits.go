// Package model defines the gateway's core data entities: tags, groups,
// nodes, plugins, subscriptions, templates, and the trans-data frames that
// flow from drivers to apps.
package model

import "time"

// Numeric limits enforced across the data model.
const (
	MaxTagNameLen          = 128
	MaxGroupNameLen        = 128
	MaxNodeNameLen         = 128
	MaxPluginNameLen       = 32
	MaxPluginLibraryLen    = 64
	MaxPluginDescLen       = 512
	MaxTemplateNameLen     = 128
	MaxFilePathLen         = 128
	MaxTagAddressLen       = 128
	MaxTagDescriptionLen   = 128
	MaxFloatPrecision      = 17
	MaxGroupsPerNode       = 512
	MinGroupInterval       = 100 * time.Millisecond
	DefaultGroupInterval   = 100 * time.Millisecond
	TagCacheExpireFactor   = 60
)
