// Package adapter implements the adapter runtime: the live wrapper around a
// hosted plugin instance that owns its message pump and implements
// pluginapi.Callbacks/DriverCallbacks on the plugin's behalf. Grounded on
// spec.md §4.3 and built on infrastructure/lifecycle.Base for the worker
// scaffolding, the same pattern the teacher uses for its BaseService-derived
// long-running components.
package adapter

import (
	"context"
	"encoding/json"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/infrastructure/lifecycle"
	"github.com/neuron-gateway/gateway/infrastructure/logging"
	"github.com/neuron-gateway/gateway/infrastructure/metrics"
	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
)

// MailboxCapacity is the bounded size of an adapter's inbound channel,
// ported from spec.md §5's fixed-capacity message queue requirement.
const MailboxCapacity = 256

// Dispatcher is the surface the adapter needs from the manager side to send
// messages out: posting a response or a new outbound request for routing.
// Narrowed to what Callbacks needs, the same local-interface pattern used by
// internal/nodemanager to avoid an import cycle with internal/manager.
type Dispatcher interface {
	Dispatch(ctx context.Context, env *message.Envelope) error
}

// Adapter is the live runtime wrapper around one hosted plugin instance.
// Exactly one message pump goroutine ever calls into Plugin; every other
// caller must go through Send, which enqueues rather than calling directly,
// preserving the "plugin methods are never invoked concurrently" invariant
// from spec.md §4.3.
type Adapter struct {
	*lifecycle.Base

	node   *model.Node
	plugin pluginapi.Plugin

	dispatcher Dispatcher
	metrics    *metrics.Metrics

	inbox chan *message.Envelope
}

// New constructs an adapter for node, wired to plugin and dispatcher. The
// plugin is not started; call Start once the node is ready to move to
// RUNNING.
func New(node *model.Node, plugin pluginapi.Plugin, dispatcher Dispatcher, logger *logging.Logger, m *metrics.Metrics) *Adapter {
	a := &Adapter{
		Base:       lifecycle.NewBase(node.Name, node.Name, logger),
		node:       node,
		plugin:     plugin,
		dispatcher: dispatcher,
		metrics:    m,
		inbox:      make(chan *message.Envelope, MailboxCapacity),
	}
	a.AddWorker(a.pump)
	return a
}

// Node returns the adapter's underlying node, satisfying
// internal/nodemanager.Adapter.
func (a *Adapter) Node() *model.Node {
	return a.node
}

// Send enqueues an envelope for the message pump to process. Per spec.md's
// resolved queue-overflow policy (DESIGN.md), a full mailbox drops the
// newest envelope rather than evicting a queued one, incrementing the
// adapter-queue-dropped metric and returning a transient error so the
// caller can back off and retry.
func (a *Adapter) Send(ctx context.Context, env *message.Envelope) error {
	select {
	case a.inbox <- env:
		if a.metrics != nil {
			a.metrics.SetQueueDepth(a.node.Name, len(a.inbox))
		}
		return nil
	default:
		if a.metrics != nil {
			a.metrics.RecordQueueDrop(a.node.Name)
		}
		return gwerrors.Busy("adapter_mailbox").WithDetails("node", a.node.Name)
	}
}

// pump is the single goroutine permitted to call into the plugin. It reads
// from inbox until the stop channel closes or ctx is cancelled.
func (a *Adapter) pump(ctx context.Context) {
	stopCh := a.StopChan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case env := <-a.inbox:
			if a.metrics != nil {
				a.metrics.SetQueueDepth(a.node.Name, len(a.inbox))
			}
			a.handle(ctx, env)
		}
	}
}

// handle dispatches one envelope to the appropriate plugin method, logging
// and reflecting any error back to the sender as a RESP_ERROR-shaped reply.
func (a *Adapter) handle(ctx context.Context, env *message.Envelope) {
	logger := a.Logger().WithContext(logging.WithNode(ctx, a.node.Name))

	var err error
	switch env.Head.Type {
	case message.TypeReqNodeInit:
		err = a.node.Transition(model.StateInit)
		if err == nil {
			err = a.plugin.Init(ctx)
		}
	case message.TypeReqNodeUninit:
		err = a.plugin.Uninit(ctx)
	case message.TypeReqNodeSetting:
		err = a.plugin.Setting(ctx, env.Body)
		if err == nil {
			a.node.SetSetting(env.Body)
			err = a.node.Transition(model.StateReady)
		}
	case message.TypeReqNodeCtl:
		err = a.handleNodeCtl(ctx, env.Body)
	case message.TypeTransData:
		err = a.handleTransData(ctx, env.Body)
	default:
		err = a.plugin.Request(ctx, env.Head, env.Body)
	}

	if err != nil {
		logger.WithError(err).Warn("adapter message handling failed")
		a.replyError(ctx, env, err)
	}
}

// nodeCtlRequest mirrors spec.md §6's node_ctl body: a start/stop directive.
type nodeCtlRequest struct {
	Action string `json:"action"`
}

func (a *Adapter) handleNodeCtl(ctx context.Context, body json.RawMessage) error {
	var req nodeCtlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return gwerrors.Wrap(gwerrors.BodyIsWrong, "invalid node_ctl body", err)
	}
	switch req.Action {
	case "start":
		if err := a.node.Transition(model.StateRunning); err != nil {
			return err
		}
		return a.plugin.Start(ctx)
	case "stop":
		if err := a.node.Transition(model.StateStopped); err != nil {
			return err
		}
		return a.plugin.Stop(ctx)
	default:
		return gwerrors.New(gwerrors.ParamIsWrong, "unknown node_ctl action").WithDetails("action", req.Action)
	}
}

// handleTransData delivers an inbound trans-data frame to an app plugin.
// Only app-kind adapters are ever subscribed to receive TypeTransData, so a
// plugin that doesn't implement AppPlugin here means the subscription
// fabric routed to the wrong node.
func (a *Adapter) handleTransData(ctx context.Context, body json.RawMessage) error {
	app, ok := a.plugin.(pluginapi.AppPlugin)
	if !ok {
		return gwerrors.New(gwerrors.NodeNotAllowSubscribe, "node does not accept trans-data").WithDetails("node", a.node.Name)
	}
	var frame model.TransData
	if err := json.Unmarshal(body, &frame); err != nil {
		return gwerrors.Wrap(gwerrors.BodyIsWrong, "invalid trans_data body", err)
	}
	return app.Deliver(ctx, &frame)
}

// replyError synthesizes a RESP_ERROR envelope back to the sender, per
// spec.md §7's "manager synthesizes RESP_ERROR rather than dropping the
// request" rule.
func (a *Adapter) replyError(ctx context.Context, env *message.Envelope, err error) {
	if a.dispatcher == nil {
		return
	}
	gerr := gwerrors.As(err)
	if gerr == nil {
		gerr = gwerrors.Internal(err.Error(), err)
	}
	body, _ := json.Marshal(gerr)
	resp := env.Reply(message.TypeRespError, a.node.Name, body)
	if dispatchErr := a.dispatcher.Dispatch(ctx, resp); dispatchErr != nil {
		a.Logger().WithContext(ctx).WithError(dispatchErr).Warn("failed to dispatch error reply")
	}
}

// Command submits a new outbound request through the manager, satisfying
// pluginapi.Callbacks. Used by a plugin to ask its adapter to forward
// something upstream (e.g. a driver relaying a write result that needs
// manager-side fan-out).
func (a *Adapter) Command(ctx context.Context, typ message.Type, body []byte) error {
	if a.dispatcher == nil {
		return gwerrors.Internal("adapter has no dispatcher configured", nil).WithDetails("node", a.node.Name)
	}
	env := message.New(typ, a.node.Name, "manager", body)
	return a.dispatcher.Dispatch(ctx, env)
}

// Response replies to the sender of a pending request by request ID.
func (a *Adapter) Response(ctx context.Context, reqID string, body []byte) error {
	return a.ResponseTo(ctx, reqID, body, "manager")
}

// ResponseTo replies to a specific transport address, used by app plugins
// answering traffic over their own ingress rather than the manager.
func (a *Adapter) ResponseTo(ctx context.Context, reqID string, body []byte, addr string) error {
	if a.dispatcher == nil {
		return gwerrors.Internal("adapter has no dispatcher configured", nil).WithDetails("node", a.node.Name)
	}
	env := &message.Envelope{
		Head: message.Head{Type: message.TypeRespGeneric, RequestID: reqID, Sender: a.node.Name, Receiver: addr},
		Body: body,
	}
	return a.dispatcher.Dispatch(ctx, env)
}

// RegisterMetric declares a plugin-owned metric, seeding it in the
// process-wide gauge infrastructure/metrics exposes at init's value. help
// and metricType are accepted for ABI compatibility with the plugin
// callback surface but have no Prometheus equivalent worth carrying
// per-metric (Prometheus infers type from the collector, not a per-sample
// flag).
func (a *Adapter) RegisterMetric(name, help, metricType string, init float64) error {
	a.Logger().WithNode(a.node.Name).WithField("metric", name).Info("plugin metric registered")
	if a.metrics != nil {
		a.metrics.RegisterPluginMetric(a.node.Name, name, init)
	}
	return nil
}

// UpdateMetric applies delta to a previously registered plugin metric,
// optionally scoped to group.
func (a *Adapter) UpdateMetric(name string, delta float64, group string) error {
	if a.metrics != nil {
		a.metrics.UpdatePluginMetric(a.node.Name, group, name, delta)
	}
	return nil
}

var (
	_ message.Receiver  = (*Adapter)(nil)
	_ pluginapi.Callbacks = (*Adapter)(nil)
)
