package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/fleet/fleettest"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// TestGetStatus_MacroStateInvariant exercises every combination of the two
// tracked component states: Maintenance iff all Inactive, Connected iff all
// Active, otherwise Transitioning.
func TestGetStatus_MacroStateInvariant(t *testing.T) {
	states := []types.ComponentState{
		types.ComponentActive,
		types.ComponentDraining,
		types.ComponentInactive,
	}

	for _, transport := range states {
		for _, wideOffline := range states {
			name := string(transport) + "/" + string(wideOffline)
			t.Run(name, func(t *testing.T) {
				fake := fleettest.New()
				fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
				require.NoError(t, fake.SetComponent(context.Background(), "mbx-01", types.CapabilityTransport, transport, "test"))
				require.NoError(t, fake.SetComponent(context.Background(), "mbx-01", types.CapabilityWideOffline, wideOffline, "test"))

				agg := NewAggregator(fake, fake)
				got, err := agg.GetStatus(context.Background(), "mbx-01")
				require.NoError(t, err)

				want := types.MacroTransitioning
				if transport == types.ComponentInactive && wideOffline == types.ComponentInactive {
					want = types.MacroMaintenance
				} else if transport == types.ComponentActive && wideOffline == types.ComponentActive {
					want = types.MacroConnected
				}
				assert.Equal(t, want, got.State)
				assert.Equal(t, "mbx-01", got.NodeName)
			})
		}
	}
}

func TestGetStatus_ActiveComponentCount(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.SetExtraActive("mbx-01", 40)

	agg := NewAggregator(fake, fake)
	got, err := agg.GetStatus(context.Background(), "mbx-01")
	require.NoError(t, err)
	assert.Equal(t, 42, got.ActiveComponents, "two tracked capabilities plus the extras")
}

func TestGetStatus_UnreachablePropagates(t *testing.T) {
	fake := fleettest.New()
	fake.AddNode(&types.Node{Name: "mbx-01", Zone: "ams-1"})
	fake.SetUnreachable("mbx-01", true)

	agg := NewAggregator(fake, fake)
	_, err := agg.GetStatus(context.Background(), "mbx-01")

	var unreachable *fleet.UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, "mbx-01", unreachable.Node)
}
