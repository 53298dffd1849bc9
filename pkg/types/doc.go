/*
Package types defines the core data structures used throughout Fleetmaint.

This package contains the fundamental types that represent the maintenance
domain model: fleet nodes, activatable capability components, cluster
membership, queued-message classes, database copies, and the derived
maintenance macro-state. All other packages build on these types for
orchestration decisions and status reporting.

# Macro-State

Every node reduces to one of three macro-states:

	Connected     → tracked capabilities are all Active
	Maintenance   → tracked capabilities are all Inactive
	Transitioning → anything in between

The reduction is performed by pkg/status on every poll; MaintenanceStatus
values are observations, never stored state.

# Enumeration Pattern

All enums use typed string constants for safety and clarity:

	type ComponentState string
	const (
	    ComponentActive   ComponentState = "active"
	    ComponentInactive ComponentState = "inactive"
	)

# Thread Safety

Types here carry no synchronization. Workflow invocations treat Node values
as immutable; the external stores own all mutable state and serialize access
behind their own contracts (see pkg/fleet).
*/
package types
