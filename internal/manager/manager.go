// Package manager implements the manager core: the single switchboard
// every adapter's outbound call and every external API request passes
// through. Grounded on spec.md §4.8 and the teacher's Android-inspired
// IntentRouter dispatch model (internal/message.Router), this is the one
// place that owns every live map (registry, node table, subscription
// fabric, templates) and the persistence store. Its methods run on the
// caller's goroutine and are not serialized against one another: the
// manager's own mutex guards only its table of live nodes, and each
// subordinate table takes its own lock.
package manager

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/infrastructure/lifecycle"
	"github.com/neuron-gateway/gateway/infrastructure/logging"
	"github.com/neuron-gateway/gateway/infrastructure/metrics"
	"github.com/neuron-gateway/gateway/internal/adapter"
	"github.com/neuron-gateway/gateway/internal/driver"
	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/nodemanager"
	"github.com/neuron-gateway/gateway/internal/persistence"
	"github.com/neuron-gateway/gateway/internal/pluginapi"
	"github.com/neuron-gateway/gateway/internal/registry"
	"github.com/neuron-gateway/gateway/internal/subscription"
	"github.com/neuron-gateway/gateway/internal/template"
)

// liveNode is the manager's private record of one running node: its
// adapter/driver instance (whichever applies) plus the raw plugin handle
// needed for node-addressed forwards that the adapter/driver wrapper
// doesn't already expose.
type liveNode struct {
	node   *model.Node
	plugin pluginapi.Plugin
	driver *driver.Driver  // set only for NodeTypeDriver
	app    *adapter.Adapter // set only for NodeTypeApp
}

func (l *liveNode) receiver() message.Receiver {
	if l.driver != nil {
		return l.driver
	}
	return l.app
}

// Manager is the gateway's manager core.
type Manager struct {
	*lifecycle.Base

	registry  *registry.Registry
	nodes     *nodemanager.Manager
	subs      *subscription.Manager
	templates *template.Manager
	store     *persistence.Store
	router    *message.Router
	metrics   *metrics.Metrics

	mu   sync.Mutex // guards live
	live map[string]*liveNode

	// cron drives the periodic NODES_STATE heartbeat broadcast, independent
	// of the on-change broadcasts AddNode/DelNode/NodeCtl already trigger.
	cron *cron.Cron
}

// nodesStateHeartbeat is how often NODES_STATE is broadcast even absent
// any node change, so a newly (re)connected app isn't left waiting for
// the next mutation to learn the current topology.
const nodesStateHeartbeat = "@every 30s"

// New constructs a manager wired to an already-populated plugin registry
// and an open persistence store. The returned Manager is not started;
// call Restore then Start.
func New(reg *registry.Registry, store *persistence.Store, logger *logging.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = logging.NewFromEnv("manager")
	}
	mgr := &Manager{
		Base:     lifecycle.NewBase("manager", "manager", logger),
		registry: reg,
		nodes:    nodemanager.New(),
		subs:     subscription.New(),
		store:    store,
		metrics:  m,
		live:     make(map[string]*liveNode),
	}
	mgr.router = message.NewRouter(logger)
	mgr.templates = template.New(reg)

	mgr.cron = cron.New()
	mgr.cron.AddFunc(nodesStateHeartbeat, func() { mgr.broadcastNodesState(context.Background()) })

	return mgr
}

// Start launches the manager's own background workers (currently just the
// NODES_STATE heartbeat) on top of whatever internal/lifecycle.Base
// scaffolding it inherited. Call after Restore.
func (mgr *Manager) Start(ctx context.Context) error {
	mgr.cron.Start()
	return mgr.Base.Start(ctx)
}

// Shutdown stops every live node in reverse dependency order (apps before
// drivers, so no app is left subscribed to a driver that already went
// away) and releases the manager's own resources.
func (mgr *Manager) Shutdown(ctx context.Context) {
	stopCtx := mgr.cron.Stop()
	<-stopCtx.Done()

	mgr.mu.Lock()
	names := make([]string, 0, len(mgr.live))
	for name, ln := range mgr.live {
		if ln.node.Type == model.NodeTypeApp {
			names = append(names, name)
		}
	}
	for name, ln := range mgr.live {
		if ln.node.Type == model.NodeTypeDriver {
			names = append(names, name)
		}
	}
	mgr.mu.Unlock()

	for _, name := range names {
		_ = mgr.NodeCtl(ctx, name, "stop")
		mgr.teardownNode(name)
	}
	_ = mgr.Base.Stop()
}

// Router exposes the manager's message router, for wiring an HTTP/CLI
// edge that needs to register its own receiver (e.g. a CLI session
// listening for NODES_STATE broadcasts).
func (mgr *Manager) Router() *message.Router { return mgr.router }

// Dispatch satisfies internal/adapter.Dispatcher: every adapter posts its
// outbound replies and Command/Response calls back through the manager
// rather than touching the router directly, so the manager stays the one
// chokepoint an HTTP/CLI edge can also post through.
func (mgr *Manager) Dispatch(ctx context.Context, env *message.Envelope) error {
	return mgr.router.Dispatch(ctx, env)
}

// createNode builds a fresh Node + adapter/driver pair from a registry
// entry, registers it with the node manager and the router, starts its
// message pump and queues REQ_NODE_INIT to it (the adapter moves the node
// to INIT when it handles that message). It does not persist the node.
// Shared by AddNode and the template Builder's CreateDriverNode.
func (mgr *Manager) createNode(ctx context.Context, name, pluginName string, isMonitor bool) (*liveNode, error) {
	entry, ok := mgr.registry.Find(pluginName)
	if !ok {
		return nil, gwerrors.NotFound("plugin", pluginName)
	}

	node, err := model.NewNode(name, pluginName, entry.Type)
	if err != nil {
		return nil, err
	}
	node.IsMonitor = isMonitor
	node.Single = entry.Single

	plugin, err := mgr.registry.CreateInstance(pluginName, name)
	if err != nil {
		return nil, err
	}

	ln := &liveNode{node: node, plugin: plugin}
	switch entry.Type {
	case model.NodeTypeDriver:
		driverPlugin, ok := plugin.(pluginapi.DriverPlugin)
		if !ok {
			mgr.registry.DestroyInstance(pluginName)
			return nil, gwerrors.New(gwerrors.LibraryModuleInvalid, "plugin does not implement DriverPlugin").
				WithDetails("plugin", pluginName)
		}
		ln.driver = driver.New(node, driverPlugin, mgr, mgr, mgr.Logger(), mgr.metrics)
	default:
		ln.app = adapter.New(node, plugin, mgr, mgr.Logger(), mgr.metrics)
	}

	if err := mgr.nodes.Add(name, &nodemanager.Entry{
		Adapter:   ln.receiver().(nodemanager.Adapter),
		IsStatic:  entry.Kind == model.PluginKindSystem,
		Display:   entry.Display,
		Single:    entry.Single,
		IsMonitor: isMonitor,
	}); err != nil {
		mgr.registry.DestroyInstance(pluginName)
		return nil, err
	}

	mgr.router.Register(name, ln.receiver(), isMonitor)
	mgr.mu.Lock()
	mgr.live[name] = ln
	mgr.mu.Unlock()

	// The node's transport address in this in-process design is simply its
	// own registered name: the router can deliver to it as soon as
	// Register above returns, which is the "transport bound" event
	// waitForAddresses (nodemanager.ExistsUninit) is waiting on.
	_ = mgr.nodes.UpdateAddress(name, name)
	node.SetAddress(name)

	if err := ln.receiver().(starter).Start(ctx); err != nil {
		mgr.teardownNode(name)
		return nil, err
	}
	// Init runs through the adapter's own message pump rather than being
	// called directly, preserving the "plugin methods are never invoked
	// concurrently" invariant.
	if err := ln.receiver().Send(ctx, message.New(message.TypeReqNodeInit, "manager", name, nil)); err != nil {
		mgr.teardownNode(name)
		return nil, err
	}
	return ln, nil
}

// starter is satisfied by both *adapter.Adapter and *driver.Driver via
// their embedded lifecycle.Base.
type starter interface {
	Start(ctx context.Context) error
}

// teardownNode removes every trace of a node from the live maps. Callers
// hold no locks when this runs its own locking internally.
func (mgr *Manager) teardownNode(name string) {
	mgr.mu.Lock()
	ln, ok := mgr.live[name]
	if ok {
		delete(mgr.live, name)
	}
	mgr.mu.Unlock()

	mgr.router.Unregister(name)
	_ = mgr.nodes.Delete(name)
	if ok {
		_ = ln.receiver().(interface{ Stop() error }).Stop()
		mgr.registry.DestroyInstance(ln.node.PluginName)
	}
}

func (mgr *Manager) findLive(name string) (*liveNode, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	ln, ok := mgr.live[name]
	return ln, ok
}

var _ adapter.Dispatcher = (*Manager)(nil)
var _ driver.Publisher = (*Manager)(nil)
var _ template.Builder = (*Manager)(nil)
