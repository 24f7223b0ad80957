package driver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
)

func newGroup(t *testing.T, interval time.Duration) *model.Group {
	t.Helper()
	g, err := model.NewGroup("g1", interval)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	return g
}

func readableTag(t *testing.T, name string) *model.Tag {
	t.Helper()
	tag := &model.Tag{Name: name, Address: "40001", Type: model.TypeInt32, Attribute: model.AttrReadable | model.AttrWritable}
	if err := tag.Validate(); err != nil {
		t.Fatalf("tag.Validate() error = %v", err)
	}
	return tag
}

func TestDriver_WriteTagCoercesAndCallsPlugin(t *testing.T) {
	node, err := model.NewNode("d1", "p-modbus", model.NodeTypeDriver)
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	group := newGroup(t, 100*time.Millisecond)
	if err := group.AddTag(readableTag(t, "t1")); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	if err := node.AddGroup(group); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}
	node.Transition(model.StateInit)
	node.Transition(model.StateReady)
	node.Transition(model.StateRunning)

	plugin := &recordingDriverPlugin{}
	d := New(node, plugin, nil, nil, nil, nil)

	if err := d.WriteTag(context.Background(), "req-1", "g1", "t1", float64(42)); err != nil {
		t.Fatalf("WriteTag() error = %v", err)
	}
	if plugin.writeTagValue != int64(42) {
		t.Fatalf("plugin saw value %v, want int64(42)", plugin.writeTagValue)
	}
}

func TestDriver_WriteTagRejectsNotWritable(t *testing.T) {
	node, _ := model.NewNode("d1", "p-modbus", model.NodeTypeDriver)
	group := newGroup(t, 100*time.Millisecond)
	tag := &model.Tag{Name: "ro", Type: model.TypeInt32, Attribute: model.AttrReadable}
	group.AddTag(tag)
	node.AddGroup(group)
	node.Transition(model.StateInit)
	node.Transition(model.StateReady)
	node.Transition(model.StateRunning)

	plugin := &recordingDriverPlugin{}
	d := New(node, plugin, nil, nil, nil, nil)

	if err := d.WriteTag(context.Background(), "req-1", "g1", "ro", 1.0); err == nil {
		t.Fatal("WriteTag() on a read-only tag = nil error, want rejection")
	}
}

func TestDriver_WriteTagsPartialFailure(t *testing.T) {
	node, _ := model.NewNode("d1", "p-modbus", model.NodeTypeDriver)
	group := newGroup(t, 100*time.Millisecond)
	group.AddTag(readableTag(t, "good"))
	node.AddGroup(group)
	node.Transition(model.StateInit)
	node.Transition(model.StateReady)
	node.Transition(model.StateRunning)

	plugin := &recordingDriverPlugin{}
	d := New(node, plugin, nil, nil, nil, nil)

	errs, err := d.WriteTags(context.Background(), "req-1", "g1", map[string]interface{}{
		"good":    1.0,
		"missing": 1.0,
	})
	if err != nil {
		t.Fatalf("WriteTags() error = %v", err)
	}
	if errs["missing"] == nil {
		t.Fatal("WriteTags() did not report an error for the missing tag")
	}
	if errs["good"] != nil {
		t.Fatalf("WriteTags() reported an unexpected error for the valid tag: %v", errs["good"])
	}
}

func TestDriver_UpdateAndReportCycle(t *testing.T) {
	node, _ := model.NewNode("d1", "p-modbus", model.NodeTypeDriver)
	group := newGroup(t, 100*time.Millisecond)
	group.AddTag(readableTag(t, "t1"))
	node.AddGroup(group)
	node.Transition(model.StateInit)
	node.Transition(model.StateReady)
	node.Transition(model.StateRunning)

	plugin := &recordingDriverPlugin{}
	pub := &capturingPublisher{}
	d := New(node, plugin, nil, pub, nil, nil)

	if err := d.Update("g1", "t1", 99); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	d.doReport(context.Background(), group)

	if len(pub.frames) != 1 {
		t.Fatalf("published %d frames, want 1", len(pub.frames))
	}
	if pub.frames[0].Tags[0].Value.(float64) != 99 {
		t.Fatalf("frame tag value = %v, want 99", pub.frames[0].Tags[0].Value)
	}
}

func TestDriver_StopGroupClearsCache(t *testing.T) {
	node, _ := model.NewNode("d1", "p-modbus", model.NodeTypeDriver)
	group := newGroup(t, 100*time.Millisecond)
	group.AddTag(readableTag(t, "t1"))
	node.AddGroup(group)

	plugin := &recordingDriverPlugin{}
	d := New(node, plugin, nil, nil, nil, nil)
	d.Update("g1", "t1", 1)

	d.StartGroup(context.Background(), group)
	d.StopGroup("g1")

	if _, ok := d.cache.Get("g1", "t1", group.Interval, time.Now()); ok {
		t.Fatal("cache entry survived StopGroup()")
	}
}

// recordingDriverPlugin is a full pluginapi.DriverPlugin test double.
type recordingDriverPlugin struct {
	writeTagValue interface{}
}

func (p *recordingDriverPlugin) Init(ctx context.Context) error   { return nil }
func (p *recordingDriverPlugin) Uninit(ctx context.Context) error { return nil }
func (p *recordingDriverPlugin) Setting(ctx context.Context, raw json.RawMessage) error {
	return nil
}
func (p *recordingDriverPlugin) Start(ctx context.Context) error { return nil }
func (p *recordingDriverPlugin) Stop(ctx context.Context) error  { return nil }
func (p *recordingDriverPlugin) Request(ctx context.Context, head message.Head, body []byte) error {
	return nil
}

func (p *recordingDriverPlugin) ValidateTag(ctx context.Context, tag *model.Tag) error { return nil }
func (p *recordingDriverPlugin) GroupSync(ctx context.Context, group *model.Group) error {
	return nil
}
func (p *recordingDriverPlugin) GroupTimer(ctx context.Context, group *model.Group) error {
	return nil
}
func (p *recordingDriverPlugin) WriteTag(ctx context.Context, reqID, group, tag string, value interface{}) error {
	p.writeTagValue = value
	return nil
}
func (p *recordingDriverPlugin) WriteTags(ctx context.Context, reqID, group string, values map[string]interface{}) error {
	return nil
}

type capturingPublisher struct {
	frames []*model.TransData
}

func (c *capturingPublisher) Publish(ctx context.Context, frame *model.TransData) error {
	c.frames = append(c.frames, frame)
	return nil
}
