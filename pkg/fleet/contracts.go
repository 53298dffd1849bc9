package fleet

import (
	"context"

	"github.com/oakmail/fleetmaint/pkg/types"
)

// ComponentStateStore reads and mutates per-node capability activation
// state. Set carries a requester tag so the managed fleet can attribute
// who flipped a component.
type ComponentStateStore interface {
	GetComponent(ctx context.Context, node string, capability types.Capability) (types.ComponentState, error)
	SetComponent(ctx context.Context, node string, capability types.Capability, state types.ComponentState, requester string) error

	// CountActive returns the number of currently active components on the
	// node, across all capabilities the fleet tracks (not only the two the
	// aggregator reduces).
	CountActive(ctx context.Context, node string) (int, error)
}

// ClusterMembershipStore exposes pause/resume of a node's cluster
// membership. Pause and Resume block until the underlying operation
// reports completion, bounded by the store's own wait semantics.
type ClusterMembershipStore interface {
	GetMembership(ctx context.Context, node string) (types.Membership, error)
	Pause(ctx context.Context, node string) error
	Resume(ctx context.Context, node string) error
}

// QueueStore exposes the per-node transport queues. Redirect asks the
// transport layer to drain every queue on node toward target; the store
// owns the actual message movement.
type QueueStore interface {
	GetDepth(ctx context.Context, node string, exclude []types.QueueClass) (int, error)
	Redirect(ctx context.Context, node, target string) error
}

// DatabaseCopyStore exposes database copy placement for one node.
type DatabaseCopyStore interface {
	ListByHolder(ctx context.Context, node string) ([]*types.DatabaseCopy, error)
	SetActivationPolicy(ctx context.Context, node string, policy types.ActivationPolicy) error
	SetMoveNow(ctx context.Context, node string, moveNow bool) error

	// TriggerMove requests relocation of the node's active copies to other
	// holders; with rebalance back toward preferred holders when the node
	// is the copies' PreferredHolder.
	TriggerMove(ctx context.Context, node string) error

	// Dismount takes an unreplicated copy offline. Mount brings it back
	// and restores MountAtStartup.
	Dismount(ctx context.Context, copy *types.DatabaseCopy) error
	Mount(ctx context.Context, copy *types.DatabaseCopy) error
}

// Topology enumerates the managed fleet. Implementations must return nodes
// in a stable discovery order; the drain planner depends on it for zone
// ordering.
type Topology interface {
	ListNodes(ctx context.Context) ([]*types.Node, error)
	GetNode(ctx context.Context, name string) (*types.Node, error)
}

// OSControl triggers the OS-level action that follows a completed enter
// workflow. Invoked only after operator confirmation and a confirmed
// maintenance macro-state.
type OSControl interface {
	Reboot(ctx context.Context, node string) error
	Shutdown(ctx context.Context, node string) error
}

// Rebalancer is the fleet-wide rebalance hook fired (without waiting) at
// the end of a successful exit workflow.
type Rebalancer interface {
	RebalanceFleet(ctx context.Context) error
}
