package message

import (
	"context"
	"fmt"
	"sync"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/infrastructure/logging"
)

// Receiver is anything that can accept a routed envelope: an adapter's
// inbound channel wrapped behind a Send method. Modeled on the teacher's
// BroadcastReceiver.OnReceive, narrowed to a single method since this
// domain has no intent-filter matching, only name-addressed receivers and
// broadcast-to-monitors.
type Receiver interface {
	Send(ctx context.Context, env *Envelope) error
}

// Router resolves an envelope's receiver by name (the "explicit intent"
// case) or, for broadcasts, fans out to every registered monitor receiver
// (the "implicit intent to all matching receivers" case), grounded on
// framework.IntentRouter.RouteIntent / BroadcastIntent.
type Router struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
	monitors  map[string]Receiver
	logger    *logging.Logger
}

// NewRouter constructs an empty router.
func NewRouter(logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewFromEnv("message-router")
	}
	return &Router{
		receivers: make(map[string]Receiver),
		monitors:  make(map[string]Receiver),
		logger:    logger,
	}
}

// Register attaches a named receiver (typically one adapter's inbound
// channel). isMonitor marks it as a target for broadcast envelopes.
func (r *Router) Register(name string, receiver Receiver, isMonitor bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receivers[name] = receiver
	if isMonitor {
		r.monitors[name] = receiver
	}
}

// Unregister removes a named receiver.
func (r *Router) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.receivers, name)
	delete(r.monitors, name)
}

// Route delivers an explicit envelope to its addressed receiver. If the
// receiver is unknown, it returns a NODE_NOT_EXIST error to the caller; no
// RESP_ERROR envelope is sent back to the sender.
func (r *Router) Route(ctx context.Context, env *Envelope) error {
	r.mu.RLock()
	receiver, ok := r.receivers[env.Head.Receiver]
	r.mu.RUnlock()

	if !ok {
		return gwerrors.NotFound("node", env.Head.Receiver)
	}
	return receiver.Send(ctx, env)
}

// Broadcast delivers env to every registered monitor receiver. A panicking
// receiver is recovered and logged; it never prevents delivery to the
// others, matching framework.IntentRouter.BroadcastIntent's per-receiver
// recover wrapper and the kernel requirement that "one bad adapter cannot
// take down dispatch to every other node."
func (r *Router) Broadcast(ctx context.Context, env *Envelope) []error {
	r.mu.RLock()
	targets := make(map[string]Receiver, len(r.monitors))
	for name, recv := range r.monitors {
		targets[name] = recv
	}
	r.mu.RUnlock()

	var errs []error
	for name, receiver := range targets {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.LogDispatchFault(ctx, name, rec)
					errs = append(errs, fmt.Errorf("receiver %s panicked: %v", name, rec))
				}
			}()
			if err := receiver.Send(ctx, env); err != nil {
				errs = append(errs, fmt.Errorf("receiver %s: %w", name, err))
			}
		}()
	}
	return errs
}

// Dispatch routes an explicit envelope or broadcasts an implicit one,
// mirroring IntentRouter's single entry point that branches on
// intent.IsExplicit().
func (r *Router) Dispatch(ctx context.Context, env *Envelope) error {
	if env.IsBroadcast() {
		errs := r.Broadcast(ctx, env)
		if len(errs) > 0 {
			return gwerrors.Internal("broadcast delivery had partial failures", errs[0])
		}
		return nil
	}
	return r.Route(ctx, env)
}
