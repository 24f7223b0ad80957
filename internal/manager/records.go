package manager

import (
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/persistence"
)

// nodeRecordFor converts a live node into its persisted shape.
func nodeRecordFor(ln *liveNode) persistence.NodeRecord {
	return persistence.NodeRecord{
		Name:       ln.node.Name,
		PluginName: ln.node.PluginName,
		Type:       ln.node.Type,
		Static:     ln.node.Static,
		Single:     ln.node.Single,
		IsMonitor:  ln.node.IsMonitor,
		Address:    ln.node.Address(),
		Running:    ln.node.State() == model.StateRunning,
	}
}

// groupRecordFor converts a live group into its persisted shape.
func groupRecordFor(group *model.Group) persistence.GroupRecord {
	return persistence.GroupRecord{
		Name:           group.Name,
		IntervalMillis: group.Interval.Milliseconds(),
	}
}
