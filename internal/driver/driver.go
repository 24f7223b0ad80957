// Package driver implements the driver-specialized half of the adapter
// runtime: the tag cache, the group scheduler's read/report timers, the
// write path, and the file-transfer path. Grounded on spec.md §4.4; the
// cache itself is infrastructure/cache.Cache (one instance per driver), and
// the scheduler's timer pair is hand-rolled per group rather than built on
// infrastructure/lifecycle.AddTickerWorker because groups attach and detach
// at runtime, a dynamic set infrastructure/lifecycle's construction-time
// worker list does not support.
package driver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/neuron-gateway/gateway/infrastructure/cache"
	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/infrastructure/logging"
	"github.com/neuron-gateway/gateway/infrastructure/metrics"
	"github.com/neuron-gateway/gateway/internal/adapter"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

// writeRateLimit and writeRateBurst bound how fast write_tag/write_tags
// requests reach a single driver's plugin. A misbehaving or looping app
// can otherwise hammer a physical field device far faster than its
// protocol tolerates; the scheduler's own read/report cadence is no
// protection since writes bypass it entirely.
const (
	writeRateLimit = 50 // requests per second
	writeRateBurst = 100
)

// Publisher is the surface the driver needs to hand a finished trans-data
// frame to the rest of the system (the subscription fabric, via the
// manager). Narrowed to one method to avoid importing internal/manager.
type Publisher interface {
	Publish(ctx context.Context, frame *model.TransData) error
}

// groupRuntime is the scheduler's per-group bookkeeping: the cancel func for
// its two timer goroutines and the structural-change watermark compared
// against the group's ChangedAt() on every read tick.
type groupRuntime struct {
	cancel    context.CancelFunc
	watermark int64
}

// fileTransferState tracks one in-flight file-transfer request, keyed by
// request id, per spec.md §4.4.4.
type fileTransferState struct {
	kind string // "upload" or "download"
	path string
}

// Driver is the driver-specialized adapter: message pump (inherited from
// adapter.Adapter) plus tag cache, group scheduler, write path, and file
// transfer path.
type Driver struct {
	*adapter.Adapter

	plugin      pluginapi.DriverPlugin
	cache       *cache.Cache
	publisher   Publisher
	metrics     *metrics.Metrics
	logger      *logging.Logger
	writeLimiter *rate.Limiter

	schedMu sync.Mutex
	groups  map[string]*groupRuntime

	fileMu sync.Mutex
	files  map[string]*fileTransferState
}

// New constructs a driver adapter for node, wired to plugin, the message
// dispatcher, and the frame publisher.
func New(node *model.Node, plugin pluginapi.DriverPlugin, dispatcher adapter.Dispatcher, publisher Publisher, logger *logging.Logger, m *metrics.Metrics) *Driver {
	if logger == nil {
		logger = logging.NewFromEnv(node.Name)
	}
	return &Driver{
		Adapter:      adapter.New(node, plugin, dispatcher, logger, m),
		plugin:       plugin,
		cache:        cache.New(),
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		writeLimiter: rate.NewLimiter(rate.Limit(writeRateLimit), writeRateBurst),
		groups:       make(map[string]*groupRuntime),
		files:        make(map[string]*fileTransferState),
	}
}

// StartGroup attaches the read/report timer pair for group. Called by the
// manager whenever a group is added to a running driver, or for every
// existing group when the driver transitions to RUNNING.
func (d *Driver) StartGroup(ctx context.Context, group *model.Group) {
	gctx, cancel := context.WithCancel(ctx)

	d.schedMu.Lock()
	if existing, ok := d.groups[group.Name]; ok {
		existing.cancel()
	}
	d.groups[group.Name] = &groupRuntime{cancel: cancel}
	d.schedMu.Unlock()

	go d.readLoop(gctx, group)
	go d.reportLoop(gctx, group)
}

// StopGroup halts the timer pair for a deleted or detached group.
func (d *Driver) StopGroup(name string) {
	d.schedMu.Lock()
	rt, ok := d.groups[name]
	if ok {
		delete(d.groups, name)
	}
	d.schedMu.Unlock()

	if ok {
		rt.cancel()
		d.cache.DelGroup(name)
	}
}

func (d *Driver) runtime(name string) *groupRuntime {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()
	return d.groups[name]
}

// readLoop is the read timer: on every tick, resync the plugin's view of
// the group if its structure changed since the last tick, otherwise let the
// plugin sample on its existing view.
func (d *Driver) readLoop(ctx context.Context, group *model.Group) {
	ticker := time.NewTicker(group.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.StopChan():
			return
		case <-ticker.C:
			d.doRead(ctx, group)
		}
	}
}

func (d *Driver) doRead(ctx context.Context, group *model.Group) {
	if d.Node().State() != model.StateRunning {
		return
	}
	rt := d.runtime(group.Name)
	if rt == nil {
		return
	}

	start := time.Now()
	changed := group.ChangedAt()

	var err error
	if changed != rt.watermark {
		err = d.plugin.GroupSync(ctx, group)
		d.schedMu.Lock()
		rt.watermark = changed
		d.schedMu.Unlock()
	} else {
		err = d.plugin.GroupTimer(ctx, group)
	}

	status := "ok"
	if err != nil {
		status = "error"
		d.cache.SetError(group.Name, "", time.Now(), 1)
		d.logger.WithContext(ctx).WithError(err).Warn("group read cycle failed")
	}
	if d.metrics != nil {
		d.metrics.RecordGroupRead(d.Node().Name, group.Name, status, time.Since(start))
	}
}

// reportLoop is the report timer: on every tick, build a trans-data frame
// from the cache's current readable values and publish exactly one frame
// for this group.
func (d *Driver) reportLoop(ctx context.Context, group *model.Group) {
	ticker := time.NewTicker(group.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.StopChan():
			return
		case <-ticker.C:
			d.doReport(ctx, group)
		}
	}
}

func (d *Driver) doReport(ctx context.Context, group *model.Group) {
	if d.Node().State() != model.StateRunning {
		return
	}

	now := time.Now()
	tags := group.Tags()
	frame := &model.TransData{Driver: d.Node().Name, Group: group.Name, Tags: make([]model.TransTag, 0, len(tags))}

	for _, tag := range tags {
		if !tag.Attribute.Has(model.AttrReadable) {
			continue
		}
		tt := model.TransTag{Name: tag.Name}

		snap, ok := d.cache.Get(group.Name, tag.Name, group.Interval, now)
		switch {
		case !ok:
			tt.Error = gwerrors.PluginReadFailure
		case snap.Stale:
			tt.Error = gwerrors.TagExpired
			if d.metrics != nil {
				d.metrics.RecordCacheStale(d.Node().Name, group.Name)
			}
		case snap.Error != 0:
			tt.Error = gwerrors.PluginReadFailure
		default:
			var v interface{}
			if err := json.Unmarshal(snap.Bytes, &v); err == nil {
				tt.Value = v
			}
			tt.Meta = fromCacheMeta(snap.Meta)
		}
		frame.Tags = append(frame.Tags, tt)
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, frame); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warn("trans-data publish failed")
		}
	}
	if d.metrics != nil {
		d.metrics.RecordTransData(d.Node().Name, group.Name)
	}
}

// ReadGroup assembles a trans-data frame from the cache's current values
// for group, the same construction doReport uses for its periodic report,
// exposed synchronously for the manager's REQ_READ_GROUP forward.
func (d *Driver) ReadGroup(groupName string) (*model.TransData, error) {
	group, ok := d.Node().Group(groupName)
	if !ok {
		return nil, gwerrors.NotFound("group", groupName)
	}

	now := time.Now()
	tags := group.Tags()
	frame := &model.TransData{Driver: d.Node().Name, Group: group.Name, Tags: make([]model.TransTag, 0, len(tags))}

	for _, tag := range tags {
		if !tag.Attribute.Has(model.AttrReadable) {
			continue
		}
		tt := model.TransTag{Name: tag.Name}
		snap, ok := d.cache.Get(group.Name, tag.Name, group.Interval, now)
		switch {
		case !ok:
			tt.Error = gwerrors.PluginReadFailure
		case snap.Stale:
			tt.Error = gwerrors.TagExpired
		case snap.Error != 0:
			tt.Error = gwerrors.PluginReadFailure
		default:
			var v interface{}
			if err := json.Unmarshal(snap.Bytes, &v); err == nil {
				tt.Value = v
			}
			tt.Meta = fromCacheMeta(snap.Meta)
		}
		frame.Tags = append(frame.Tags, tt)
	}
	return frame, nil
}

// --- Write path (spec.md §4.4.3) ---

// coerce checks a decoded JSON value against the tag's declared type. JSON
// numbers decode as float64: every integer tag type (signed or unsigned,
// any width) receives the value truncated to int64, and both float tag
// types receive the float64 unchanged. Values are not narrowed to the
// tag's width and are not range-checked.
func coerce(tagType model.TagType, value interface{}) (interface{}, error) {
	switch tagType {
	case model.TypeBit, model.TypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, gwerrors.New(gwerrors.ParamIsWrong, "value is not a bool")
		}
		return b, nil
	case model.TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, gwerrors.New(gwerrors.ParamIsWrong, "value is not a string")
		}
		return s, nil
	case model.TypeInt8, model.TypeInt16, model.TypeInt32, model.TypeInt64,
		model.TypeUint8, model.TypeUint16, model.TypeUint32, model.TypeUint64:
		f, ok := value.(float64)
		if !ok {
			return nil, gwerrors.New(gwerrors.ParamIsWrong, "value is not numeric")
		}
		return int64(f), nil
	case model.TypeFloat32, model.TypeFloat64:
		f, ok := value.(float64)
		if !ok {
			return nil, gwerrors.New(gwerrors.ParamIsWrong, "value is not numeric")
		}
		return f, nil
	default:
		return value, nil
	}
}

// WriteTag resolves group/tag, coerces value to the tag's declared type,
// and hands control to the plugin. The plugin replies asynchronously via
// WriteResponse.
func (d *Driver) WriteTag(ctx context.Context, reqID, groupName, tagName string, value interface{}) error {
	if err := d.Node().RequireRunning(); err != nil {
		return err
	}
	if !d.writeLimiter.Allow() {
		return gwerrors.Busy("write_tag").WithDetails("node", d.Node().Name)
	}
	group, ok := d.Node().Group(groupName)
	if !ok {
		return gwerrors.NotFound("group", groupName)
	}
	tag, ok := group.GetTag(tagName)
	if !ok {
		return gwerrors.NotFound("tag", tagName)
	}
	if !tag.Attribute.Has(model.AttrWritable) {
		return gwerrors.WriteNotAllowed(d.Node().Name, groupName, tagName)
	}
	coerced, err := coerce(tag.Type, value)
	if err != nil {
		return err
	}
	return d.plugin.WriteTag(ctx, reqID, groupName, tagName, coerced)
}

// WriteTags handles a batch write across heterogeneous tags. Each element
// is coerced independently; a single bad element does not prevent the
// others from reaching the plugin, matching spec.md's "partial failures
// are normal and never abort the batch" rule.
func (d *Driver) WriteTags(ctx context.Context, reqID, groupName string, values map[string]interface{}) (map[string]error, error) {
	if err := d.Node().RequireRunning(); err != nil {
		return nil, err
	}
	if !d.writeLimiter.Allow() {
		return nil, gwerrors.Busy("write_tags").WithDetails("node", d.Node().Name)
	}
	group, ok := d.Node().Group(groupName)
	if !ok {
		return nil, gwerrors.NotFound("group", groupName)
	}

	coerced := make(map[string]interface{}, len(values))
	perTagErrs := make(map[string]error)
	for tagName, raw := range values {
		tag, ok := group.GetTag(tagName)
		if !ok {
			perTagErrs[tagName] = gwerrors.NotFound("tag", tagName)
			continue
		}
		if !tag.Attribute.Has(model.AttrWritable) {
			perTagErrs[tagName] = gwerrors.WriteNotAllowed(d.Node().Name, groupName, tagName)
			continue
		}
		v, err := coerce(tag.Type, raw)
		if err != nil {
			perTagErrs[tagName] = err
			continue
		}
		coerced[tagName] = v
	}

	if len(coerced) == 0 {
		return perTagErrs, nil
	}
	if err := d.plugin.WriteTags(ctx, reqID, groupName, coerced); err != nil {
		return perTagErrs, err
	}
	return perTagErrs, nil
}

// --- DriverCallbacks (spec.md §4.4.1, §4.4.3, §4.4.4) ---

// Update pushes a sampled value into the tag cache, satisfying
// pluginapi.DriverCallbacks.
func (d *Driver) Update(group, tag string, value interface{}) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return gwerrors.Wrap(gwerrors.BodyIsWrong, "failed to encode sampled value", err)
	}
	d.cache.Update(group, tag, time.Now(), bytes)
	return nil
}

// UpdateWithMeta pushes a sampled value along with metadata triples,
// preserved in the cache entry so the next report/read carries them
// through to the frame's TransTag.Meta.
func (d *Driver) UpdateWithMeta(group, tag string, value interface{}, meta []model.TagMeta) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return gwerrors.Wrap(gwerrors.BodyIsWrong, "failed to encode sampled value", err)
	}
	d.cache.UpdateWithMeta(group, tag, time.Now(), bytes, toCacheMeta(meta))
	return nil
}

func toCacheMeta(meta []model.TagMeta) []cache.Meta {
	if len(meta) == 0 {
		return nil
	}
	out := make([]cache.Meta, len(meta))
	for i, m := range meta {
		out[i] = cache.Meta{Key: m.Key, Value: m.Value}
	}
	return out
}

func fromCacheMeta(meta []cache.Meta) []model.TagMeta {
	if len(meta) == 0 {
		return nil
	}
	out := make([]model.TagMeta, len(meta))
	for i, m := range meta {
		out[i] = model.TagMeta{Key: m.Key, Value: m.Value}
	}
	return out
}

// UpdateImmediate bypasses the cache and the report timer, publishing a
// single-tag frame directly to subscribers. Used by event-driven drivers
// that cannot wait for the next report tick.
func (d *Driver) UpdateImmediate(group, tag string, value interface{}) error {
	if d.publisher == nil {
		return nil
	}
	frame := &model.TransData{
		Driver: d.Node().Name,
		Group:  group,
		Tags:   []model.TransTag{{Name: tag, Value: value}},
	}
	return d.publisher.Publish(context.Background(), frame)
}

// writeReply mirrors spec.md §6's write response body.
type writeReply struct {
	Error string `json:"error,omitempty"`
}

// WriteResponse replies to a single-tag write request.
func (d *Driver) WriteResponse(reqID string, err error) error {
	reply := writeReply{}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	return d.Response(context.Background(), reqID, body)
}

// WriteResponses replies to a batched write request with per-element
// errors; a nil entry means that element succeeded.
func (d *Driver) WriteResponses(reqID string, errs map[string]error) error {
	reply := make(map[string]string, len(errs))
	for tag, err := range errs {
		if err != nil {
			reply[tag] = err.Error()
		}
	}
	body, _ := json.Marshal(reply)
	return d.Response(context.Background(), reqID, body)
}

// ScanTagsResponse answers an optional scan_tags request.
func (d *Driver) ScanTagsResponse(reqID string, tags []*model.Tag, err error) error {
	type scanReply struct {
		Tags  []*model.Tag `json:"tags,omitempty"`
		Error string       `json:"error,omitempty"`
	}
	reply := scanReply{Tags: tags}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	return d.Response(context.Background(), reqID, body)
}

// TestReadTagResponse answers an optional test_read_tag request.
func (d *Driver) TestReadTagResponse(reqID string, value interface{}, err error) error {
	type testReply struct {
		Value interface{} `json:"value,omitempty"`
		Error string      `json:"error,omitempty"`
	}
	reply := testReply{Value: value}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	return d.Response(context.Background(), reqID, body)
}

// DirectoryResponse answers an optional directory listing request.
func (d *Driver) DirectoryResponse(reqID string, entries []pluginapi.DirectoryEntry, err error) error {
	type dirReply struct {
		Entries []pluginapi.DirectoryEntry `json:"entries,omitempty"`
		Error   string                     `json:"error,omitempty"`
	}
	reply := dirReply{Entries: entries}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	return d.Response(context.Background(), reqID, body)
}

// --- File transfer path (spec.md §4.4.4) ---

// FileUploadOpen begins a fup_open/fup_data sequence: the driver stores the
// in-flight request context keyed by reqID and delegates the open to the
// plugin, which responds through FileUploadDataResponse once per chunk.
func (d *Driver) FileUploadOpen(ctx context.Context, reqID, path string) error {
	d.fileMu.Lock()
	d.files[reqID] = &fileTransferState{kind: "upload", path: path}
	d.fileMu.Unlock()

	capable, ok := d.plugin.(pluginapi.OptionalDriverCapabilities)
	if !ok {
		return gwerrors.New(gwerrors.PluginNotSupportTemplate, "driver does not support file upload")
	}
	return capable.FileUploadOpen(ctx, reqID, path)
}

// FileUploadDataResponse delivers one chunk of an in-flight upload back to
// the requester. more=false signals the transfer is complete and the
// in-flight state is released.
func (d *Driver) FileUploadDataResponse(reqID string, bytes []byte, more bool, err error) error {
	if !more {
		d.fileMu.Lock()
		delete(d.files, reqID)
		d.fileMu.Unlock()
	}
	type chunkReply struct {
		Bytes []byte `json:"bytes,omitempty"`
		More  bool   `json:"more"`
		Error string `json:"error,omitempty"`
	}
	reply := chunkReply{Bytes: bytes, More: more}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	return d.Response(context.Background(), reqID, body)
}

// FileDownloadOpen begins an fdown_open sequence: the driver stores the
// in-flight context and delegates to the plugin, which then expects pushed
// fdown_data frames via FileDownloadDataRequest.
func (d *Driver) FileDownloadOpen(ctx context.Context, reqID, src, dst string) error {
	d.fileMu.Lock()
	d.files[reqID] = &fileTransferState{kind: "download", path: dst}
	d.fileMu.Unlock()

	capable, ok := d.plugin.(pluginapi.OptionalDriverCapabilities)
	if !ok {
		return gwerrors.New(gwerrors.PluginNotSupportTemplate, "driver does not support file download")
	}
	return capable.FileDownloadOpen(ctx, reqID, src, dst)
}

// FileDownloadDataRequest pushes one chunk of a download into the driver.
// more=false completes the transfer and releases the in-flight state.
func (d *Driver) FileDownloadDataRequest(reqID string, bytes []byte, more bool) error {
	if !more {
		d.fileMu.Lock()
		delete(d.files, reqID)
		d.fileMu.Unlock()
	}
	return nil
}

// Directory lists a path on the driver's remote filesystem, if the plugin
// supports it.
func (d *Driver) Directory(ctx context.Context, path string) error {
	capable, ok := d.plugin.(pluginapi.OptionalDriverCapabilities)
	if !ok {
		return gwerrors.New(gwerrors.PluginNotSupportTemplate, "driver does not support directory listing")
	}
	return capable.Directory(ctx, path)
}

var _ pluginapi.DriverCallbacks = (*Driver)(nil)
