package types

import (
	"time"
)

// Node represents one member of the managed mail-transport/storage fleet.
// Topology attributes (zone, DAG membership) come from the fleet inventory
// and are immutable for the duration of a workflow invocation; Latency and
// Reachable are transient telemetry attached by the watch loop.
type Node struct {
	Name          string
	Zone          string
	DAG           string // replicated group id, empty when the node holds no replicas
	NonProduction bool   // lab/test host, never a queue-redirect target
	Latency       time.Duration
	Reachable     bool
}

// IsDAGMember reports whether the node participates in a replicated group.
func (n *Node) IsDAGMember() bool {
	return n.DAG != ""
}

// Capability is an activatable component flag on a node.
type Capability string

const (
	// CapabilityTransport gates acceptance of new queued mail.
	CapabilityTransport Capability = "transport"

	// CapabilityWideOffline is the whole-node offline marker. It is the
	// authoritative signal of maintenance: a node is in maintenance iff
	// this component is inactive.
	CapabilityWideOffline Capability = "wide-offline"
)

// TrackedCapabilities lists the capabilities the status aggregator reduces
// into a macro-state, in evaluation order.
var TrackedCapabilities = []Capability{CapabilityTransport, CapabilityWideOffline}

// ComponentState represents the activation state of one capability.
type ComponentState string

const (
	ComponentActive   ComponentState = "active"
	ComponentDraining ComponentState = "draining"
	ComponentInactive ComponentState = "inactive"
)

// MembershipState represents the node's cluster membership.
type MembershipState string

const (
	MembershipUp     MembershipState = "up"
	MembershipPaused MembershipState = "paused"
	MembershipDown   MembershipState = "down"
)

// Membership is the cluster membership record for a node.
type Membership struct {
	State    MembershipState
	Draining bool // transitional: pause requested, workload still flushing
}

// QueueClass partitions queued messages by delivery class.
type QueueClass string

const (
	QueueClassNormal QueueClass = "normal"
	QueueClassShadow QueueClass = "shadow" // redundancy-only copies, never redirected
)

// CopyStatus represents the state of one database copy.
type CopyStatus string

const (
	CopyMounted    CopyStatus = "mounted"
	CopyDismounted CopyStatus = "dismounted"
	CopyHealthy    CopyStatus = "healthy"
	CopyDegraded   CopyStatus = "degraded"
	CopySeeding    CopyStatus = "seeding"
)

// ActivationPolicy controls whether copies on a node may become active.
type ActivationPolicy string

const (
	ActivationUnrestricted ActivationPolicy = "unrestricted"
	ActivationBlocked      ActivationPolicy = "blocked"
)

// ReplicationKind distinguishes databases with replica copies on other
// nodes from standalone databases that have no other holder.
type ReplicationKind string

const (
	ReplicationReplicated ReplicationKind = "replicated"
	ReplicationNone       ReplicationKind = "none"
)

// DatabaseCopy is one copy of a logical database hosted on a node.
type DatabaseCopy struct {
	Database        string
	Node            string
	Status          CopyStatus
	Policy          ActivationPolicy
	MoveNow         bool // activation disabled and relocation requested
	Replication     ReplicationKind
	MountAtStartup  bool
	PreferredHolder string // most-preferred node for the active copy
}

// MacroState is the reduced maintenance status of a node.
type MacroState string

const (
	MacroConnected     MacroState = "connected"
	MacroTransitioning MacroState = "transitioning"
	MacroMaintenance   MacroState = "maintenance"
)

// MaintenanceStatus is the aggregate status of one node. It is derived
// fresh on every poll from component and membership state and is never
// cached beyond a single poll.
type MaintenanceStatus struct {
	NodeName         string
	State            MacroState
	Membership       MembershipState
	ActiveComponents int
}

// InMaintenance reports whether the node has fully left active service.
func (s MaintenanceStatus) InMaintenance() bool {
	return s.State == MacroMaintenance
}

// Snapshot is one fleet-wide observation produced by the watch loop.
type Snapshot struct {
	TakenAt time.Time
	Nodes   []NodeStatus
}

// NodeStatus pairs a node with its status for one watch cycle. Err is set
// when the node could not be queried; Status is zero-valued in that case.
type NodeStatus struct {
	Node   *Node
	Status MaintenanceStatus
	Err    error
}
