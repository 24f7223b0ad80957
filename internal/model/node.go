package model

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

// NodeType distinguishes south-bound drivers from north-bound apps.
type NodeType int

const (
	NodeTypeDriver NodeType = iota
	NodeTypeApp
)

func (t NodeType) String() string {
	if t == NodeTypeDriver {
		return "driver"
	}
	return "app"
}

// RunningState is the adapter lifecycle state machine:
// IDLE -> INIT -> READY -> RUNNING <-> STOPPED, and *->UNINIT from any state.
type RunningState int

const (
	StateIdle RunningState = iota
	StateInit
	StateReady
	StateRunning
	StateStopped
)

func (s RunningState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LinkState reports transport-level connectivity, independent of the
// running state machine.
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkConnected
)

func (s LinkState) String() string {
	if s == LinkConnected {
		return "connected"
	}
	return "disconnected"
}

// legalTransitions enumerates every state pair allowed by the spec's state
// machine. Uninit (destruction) is handled separately: it is legal from any
// state and is not represented here.
var legalTransitions = map[RunningState]map[RunningState]bool{
	StateIdle:    {StateInit: true},
	StateInit:    {StateReady: true},
	StateReady:   {StateRunning: true},
	StateRunning: {StateStopped: true, StateReady: true},
	StateStopped: {StateRunning: true},
}

// Node is a live instance of a plugin (an "adapter" in spec terms).
// Drivers additionally own groups and a tag cache (see internal/driver);
// apps additionally participate in the subscription fabric.
type Node struct {
	Name       string
	PluginName string
	Type       NodeType
	Static     bool
	Single     bool
	IsMonitor  bool

	mu      sync.RWMutex
	state   RunningState
	link    LinkState
	setting json.RawMessage
	address string

	groups map[string]*Group
}

// NewNode constructs a node in the IDLE state.
func NewNode(name, pluginName string, nodeType NodeType) (*Node, error) {
	if name == "" {
		return nil, gwerrors.New(gwerrors.ParamIsWrong, "node name is required")
	}
	if len(name) > MaxNodeNameLen {
		return nil, gwerrors.NameTooLong("node", name, MaxNodeNameLen)
	}
	return &Node{
		Name:       name,
		PluginName: pluginName,
		Type:       nodeType,
		state:      StateIdle,
		link:       LinkDisconnected,
		groups:     make(map[string]*Group),
	}, nil
}

// State returns the node's current running state.
func (n *Node) State() RunningState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Transition attempts to move the node to `to`. Every illegal transition
// returns a NODE_NOT_READY error, from the error taxonomy's state-error
// family.
func (n *Node) Transition(to RunningState) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	allowed := legalTransitions[n.state]
	if allowed == nil || !allowed[to] {
		return gwerrors.New(gwerrors.NodeNotReady,
			fmt.Sprintf("illegal transition %s -> %s", n.state, to)).
			WithDetails("node", n.Name)
	}
	n.state = to
	return nil
}

// RequireRunning returns NODE_NOT_RUNNING if the node is not in the RUNNING
// state. The driver read/write paths call this before ever invoking the
// plugin, per spec.md §4.3's "plugin is never invoked in that case" rule.
func (n *Node) RequireRunning() error {
	if n.State() != StateRunning {
		return gwerrors.NotRunning(n.Name)
	}
	return nil
}

// SetLink updates the transport-level link state.
func (n *Node) SetLink(link LinkState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.link = link
}

// Link returns the current link state.
func (n *Node) Link() LinkState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.link
}

// SetSetting records the plugin-interpreted settings blob. Callers validate
// the setting through the plugin's Setting() entry point before calling
// this; once accepted the node moves INIT -> READY.
func (n *Node) SetSetting(setting json.RawMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setting = setting
}

// Setting returns the current settings blob.
func (n *Node) Setting() json.RawMessage {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.setting
}

// SetAddress records the transport address once the adapter finishes
// initialization. An empty address means "still initializing."
func (n *Node) SetAddress(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.address = addr
}

// Address returns the transport address, or "" if not yet initialized.
func (n *Node) Address() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.address
}

// AddGroup attaches a new group to a driver node, enforcing the
// at-most-512-groups and unique-name-within-node invariants.
func (n *Node) AddGroup(g *Group) error {
	if n.Type != NodeTypeDriver {
		return gwerrors.New(gwerrors.NodeNotAllowMap, "only driver nodes own groups").
			WithDetails("node", n.Name)
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.groups[g.Name]; exists {
		return gwerrors.AlreadyExists("group", g.Name)
	}
	if len(n.groups) >= MaxGroupsPerNode {
		return gwerrors.GroupParamInvalid(fmt.Sprintf("node already holds the maximum of %d groups", MaxGroupsPerNode))
	}
	n.groups[g.Name] = g
	return nil
}

// DeleteGroup removes a group by name, cascading cache/subscription cleanup
// is the caller's (internal/driver, internal/subscription) responsibility.
func (n *Node) DeleteGroup(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.groups[name]; !exists {
		return gwerrors.NotFound("group", name)
	}
	delete(n.groups, name)
	return nil
}

// Group returns the named group, or false if absent.
func (n *Node) Group(name string) (*Group, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	g, ok := n.groups[name]
	return g, ok
}

// Groups returns a snapshot slice of all groups owned by this node.
func (n *Node) Groups() []*Group {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Group, 0, len(n.groups))
	for _, g := range n.groups {
		out = append(out, g)
	}
	return out
}
