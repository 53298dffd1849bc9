// Package status reduces per-node component activation and cluster
// membership into the single maintenance macro-state the rest of the
// system polls against.
package status

import (
	"context"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// Aggregator computes MaintenanceStatus for one node. It is
// side-effect-free and holds no state between polls: every GetStatus call
// reads the external stores fresh. UnreachableError from a store is
// propagated untouched; retrying is the convergence loop's concern.
type Aggregator struct {
	components fleet.ComponentStateStore
	membership fleet.ClusterMembershipStore
}

// NewAggregator creates a status aggregator over the given stores.
func NewAggregator(components fleet.ComponentStateStore, membership fleet.ClusterMembershipStore) *Aggregator {
	return &Aggregator{
		components: components,
		membership: membership,
	}
}

// GetStatus reduces the node's tracked capabilities to a macro-state:
// Maintenance iff all tracked components are Inactive, Connected iff all
// are Active, Transitioning otherwise.
func (a *Aggregator) GetStatus(ctx context.Context, node string) (types.MaintenanceStatus, error) {
	allActive := true
	allInactive := true
	for _, capability := range types.TrackedCapabilities {
		state, err := a.components.GetComponent(ctx, node, capability)
		if err != nil {
			return types.MaintenanceStatus{}, err
		}
		if state != types.ComponentActive {
			allActive = false
		}
		if state != types.ComponentInactive {
			allInactive = false
		}
	}

	active, err := a.components.CountActive(ctx, node)
	if err != nil {
		return types.MaintenanceStatus{}, err
	}

	membership, err := a.membership.GetMembership(ctx, node)
	if err != nil {
		return types.MaintenanceStatus{}, err
	}

	state := types.MacroTransitioning
	switch {
	case allInactive:
		state = types.MacroMaintenance
	case allActive:
		state = types.MacroConnected
	}

	return types.MaintenanceStatus{
		NodeName:         node,
		State:            state,
		Membership:       membership.State,
		ActiveComponents: active,
	}, nil
}
