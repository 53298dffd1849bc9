package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/oakmail/fleetmaint/pkg/types"
)

func TestObserveSnapshot(t *testing.T) {
	snapshot := types.Snapshot{
		Nodes: []types.NodeStatus{
			{Node: &types.Node{Name: "n1"}, Status: types.MaintenanceStatus{State: types.MacroConnected}},
			{Node: &types.Node{Name: "n2"}, Status: types.MaintenanceStatus{State: types.MacroConnected}},
			{Node: &types.Node{Name: "n3"}, Status: types.MaintenanceStatus{State: types.MacroMaintenance}},
			{Node: &types.Node{Name: "n4"}, Err: assert.AnError},
		},
	}

	ObserveSnapshot(snapshot)

	assert.Equal(t, float64(2), testutil.ToFloat64(NodesTotal.WithLabelValues(string(types.MacroConnected))))
	assert.Equal(t, float64(0), testutil.ToFloat64(NodesTotal.WithLabelValues(string(types.MacroTransitioning))))
	assert.Equal(t, float64(1), testutil.ToFloat64(NodesTotal.WithLabelValues(string(types.MacroMaintenance))))
	assert.Equal(t, float64(1), testutil.ToFloat64(NodesUnreachable), "errored nodes count as unreachable, not as any macro-state")
}
