// Package pluginapi defines the symmetric capability contracts between the
// adapter runtime and a hosted plugin instance. Per design note §9 of the
// specification this reworks the original's "union of function pointers"
// into two interface sets per adapter kind: one trait-like contract the
// adapter calls into (Plugin / DriverPlugin), and one the plugin calls back
// through (Callbacks / DriverCallbacks).
package pluginapi

import (
	"context"
	"encoding/json"

	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
)

// Plugin is the contract every hosted plugin instance implements,
// regardless of whether it is a driver or an app. The adapter runtime never
// invokes more than one of these methods concurrently on the same instance.
type Plugin interface {
	// Init transitions the plugin from IDLE to INIT-complete.
	Init(ctx context.Context) error
	// Uninit releases any resources held by the plugin. Legal from any
	// state; the adapter is being destroyed.
	Uninit(ctx context.Context) error
	// Setting validates and applies an opaque, plugin-interpreted settings
	// blob. Accepting moves the node INIT -> READY.
	Setting(ctx context.Context, raw json.RawMessage) error
	// Start transitions READY -> RUNNING.
	Start(ctx context.Context) error
	// Stop transitions RUNNING -> STOPPED.
	Stop(ctx context.Context) error
	// Request handles a message addressed to this plugin instance that
	// isn't covered by a more specific method below (e.g. node_ctl).
	Request(ctx context.Context, head message.Head, body []byte) error
}

// DriverPlugin is the additional contract driver-kind plugins implement.
type DriverPlugin interface {
	Plugin

	// ValidateTag is invoked before a tag is accepted into a group. A tag
	// rejected here never enters the group.
	ValidateTag(ctx context.Context, tag *model.Tag) error

	// GroupSync refreshes the plugin's view of a group after a structural
	// change (add/update/delete tag, interval change) is detected by
	// comparing the group's change-timestamp against the scheduler's
	// watermark. Supplemented from the original's driver.c: this is
	// distinct from GroupTimer, not a parameter variant of it.
	GroupSync(ctx context.Context, group *model.Group) error

	// GroupTimer is the steady-state sampling call: no structural change
	// was detected since the last cycle, just sample the current tag set.
	GroupTimer(ctx context.Context, group *model.Group) error

	// WriteTag coerces and writes a single tag value. The plugin responds
	// asynchronously via DriverCallbacks.WriteResponse.
	WriteTag(ctx context.Context, reqID string, group, tag string, value interface{}) error

	// WriteTags handles a batch write with heterogeneous per-tag values.
	// Partial failures are normal; the plugin reports per-element errors
	// through DriverCallbacks.WriteResponses and never aborts the batch.
	WriteTags(ctx context.Context, reqID string, group string, values map[string]interface{}) error
}

// OptionalDriverCapabilities groups the driver-plugin methods the spec
// marks as optional (scan_tags, test_read_tag, action, directory,
// file-transfer staging). A driver plugin that doesn't support one of
// these simply doesn't implement this interface, or returns
// PLUGIN_NOT_SUPPORT_TEMPLATE-class errors from an embedding default.
type OptionalDriverCapabilities interface {
	ScanTags(ctx context.Context, group string) error
	TestReadTag(ctx context.Context, group, tag string) error
	Directory(ctx context.Context, path string) error
	FileUploadOpen(ctx context.Context, reqID, path string) error
	FileUploadData(ctx context.Context, reqID string) error
	FileDownloadOpen(ctx context.Context, reqID, src, dst string) error
}

// AppPlugin is the additional contract app-kind plugins implement. Apps
// receive trans-data from subscribed drivers and may emit writes back.
type AppPlugin interface {
	Plugin

	// Deliver hands a trans-data frame to the app plugin. Called by the
	// adapter runtime's message pump, never concurrently with another
	// Deliver on the same instance.
	Deliver(ctx context.Context, frame *model.TransData) error
}

// Callbacks is the surface every hosted plugin uses to talk back to its
// adapter, symmetric to Plugin. Implemented by internal/adapter.
type Callbacks interface {
	// Command submits a request downstream (e.g. a driver asking the
	// adapter to forward a write request to the manager).
	Command(ctx context.Context, typ message.Type, body []byte) error
	// Response replies to a pending request by request ID.
	Response(ctx context.Context, reqID string, body []byte) error
	// ResponseTo replies to a specific transport address, used by app
	// plugins answering request/response traffic over their ingress.
	ResponseTo(ctx context.Context, reqID string, body []byte, addr string) error
	// RegisterMetric declares a plugin-owned metric.
	RegisterMetric(name, help, metricType string, init float64) error
	// UpdateMetric updates a previously registered metric, optionally
	// scoped to a group.
	UpdateMetric(name string, delta float64, group string) error
}

// DriverCallbacks is the additional callback surface driver plugins use.
type DriverCallbacks interface {
	Callbacks

	// Update pushes a sampled value into the tag cache.
	Update(group, tag string, value interface{}) error
	// UpdateWithMeta pushes a sampled value with metadata triples.
	UpdateWithMeta(group, tag string, value interface{}, meta []model.TagMeta) error
	// UpdateImmediate bypasses the cache and the scheduler's report timer,
	// pushing a value directly to subscribers. Used for event-driven
	// drivers that can't wait for the next report tick.
	UpdateImmediate(group, tag string, value interface{}) error

	// WriteResponse replies to a single-tag write request.
	WriteResponse(reqID string, err error) error
	// WriteResponses replies to a batched write request with per-element
	// errors; nil entries mean that element succeeded.
	WriteResponses(reqID string, errs map[string]error) error

	// ScanTagsResponse, TestReadTagResponse, and DirectoryResponse answer
	// the corresponding optional request.
	ScanTagsResponse(reqID string, tags []*model.Tag, err error) error
	TestReadTagResponse(reqID string, value interface{}, err error) error
	DirectoryResponse(reqID string, entries []DirectoryEntry, err error) error

	// File transfer staged callbacks, see internal/driver's file transfer
	// path for the request/response protocol these implement.
	FileUploadDataResponse(reqID string, bytes []byte, more bool, err error) error
	FileDownloadDataRequest(reqID string, bytes []byte, more bool) error
}

// DirectoryEntry describes one file or directory entry returned by a
// driver's Directory optional capability.
type DirectoryEntry struct {
	Name  string
	IsDir bool
	Size  int64
	Mtime int64
}

// Factory constructs a new plugin instance given its settings-free initial
// state. Registered per plugin module name in internal/registry.
type Factory func() Plugin
