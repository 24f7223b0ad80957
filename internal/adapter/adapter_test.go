package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

type fakePlugin struct {
	initCalled    bool
	settingCalled bool
	startCalled   bool
	requestCalled bool
	failSetting   bool
}

func (p *fakePlugin) Init(ctx context.Context) error { p.initCalled = true; return nil }
func (p *fakePlugin) Uninit(ctx context.Context) error { return nil }
func (p *fakePlugin) Setting(ctx context.Context, raw json.RawMessage) error {
	p.settingCalled = true
	if p.failSetting {
		return errBoom
	}
	return nil
}
func (p *fakePlugin) Start(ctx context.Context) error { p.startCalled = true; return nil }
func (p *fakePlugin) Stop(ctx context.Context) error  { return nil }
func (p *fakePlugin) Request(ctx context.Context, head message.Head, body []byte) error {
	p.requestCalled = true
	return nil
}

var errBoom = errShort("boom")

type errShort string

func (e errShort) Error() string { return string(e) }

type fakeAppPlugin struct {
	fakePlugin
	delivered *model.TransData
}

func (p *fakeAppPlugin) Deliver(ctx context.Context, frame *model.TransData) error {
	p.delivered = frame
	return nil
}

type fakeDispatcher struct {
	sent []*message.Envelope
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, env *message.Envelope) error {
	d.sent = append(d.sent, env)
	return nil
}

func newTestAdapter(t *testing.T, plugin pluginapi.Plugin, dispatcher Dispatcher) *Adapter {
	t.Helper()
	node, err := model.NewNode("d1", "p-modbus", model.NodeTypeDriver)
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	return New(node, plugin, dispatcher, nil, nil)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAdapter_InitTransitionsNode(t *testing.T) {
	plugin := &fakePlugin{}
	a := newTestAdapter(t, plugin, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	env := message.New(message.TypeReqNodeInit, "manager", "d1", nil)
	if err := a.Send(ctx, env); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool { return plugin.initCalled })
	if a.Node().State() != model.StateInit {
		t.Fatalf("node state = %v, want init", a.Node().State())
	}
}

func TestAdapter_SettingFailureRepliesError(t *testing.T) {
	plugin := &fakePlugin{failSetting: true}
	dispatcher := &fakeDispatcher{}
	a := newTestAdapter(t, plugin, dispatcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	env := message.New(message.TypeReqNodeSetting, "manager", "d1", json.RawMessage(`{}`))
	if err := a.Send(ctx, env); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool { return len(dispatcher.sent) == 1 })
	if dispatcher.sent[0].Head.Type != message.TypeRespError {
		t.Fatalf("reply type = %v, want RESP_ERROR", dispatcher.sent[0].Head.Type)
	}
}

func TestAdapter_TransDataDeliveredToAppPlugin(t *testing.T) {
	plugin := &fakeAppPlugin{}
	a := newTestAdapter(t, plugin, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	frame := &model.TransData{Driver: "d1", Group: "g1", Tags: []model.TransTag{{Name: "t1", Value: 1.0}}}
	body, _ := json.Marshal(frame)
	env := message.New(message.TypeTransData, "manager", "app1", body)
	if err := a.Send(ctx, env); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool { return plugin.delivered != nil })
	if plugin.delivered.Group != "g1" || len(plugin.delivered.Tags) != 1 {
		t.Fatalf("delivered frame = %+v", plugin.delivered)
	}
}

func TestAdapter_TransDataRejectedByNonAppPlugin(t *testing.T) {
	plugin := &fakePlugin{}
	dispatcher := &fakeDispatcher{}
	a := newTestAdapter(t, plugin, dispatcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	env := message.New(message.TypeTransData, "manager", "d1", json.RawMessage(`{}`))
	if err := a.Send(ctx, env); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool { return len(dispatcher.sent) == 1 })
	if dispatcher.sent[0].Head.Type != message.TypeRespError {
		t.Fatalf("reply type = %v, want RESP_ERROR", dispatcher.sent[0].Head.Type)
	}
}

func TestAdapter_MailboxDropsWhenFull(t *testing.T) {
	plugin := &fakePlugin{}
	a := newTestAdapter(t, plugin, nil)
	ctx := context.Background()

	// Fill the mailbox without starting the pump so nothing drains it.
	for i := 0; i < MailboxCapacity; i++ {
		if err := a.Send(ctx, message.New(message.TypeReqNodeInit, "manager", "d1", nil)); err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}
	if err := a.Send(ctx, message.New(message.TypeReqNodeInit, "manager", "d1", nil)); err == nil {
		t.Fatal("Send() on a full mailbox = nil error, want a transient busy error")
	}
}
