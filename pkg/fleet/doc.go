/*
Package fleet defines the collaborator contracts the maintenance core
consumes, the shared error taxonomy, and a YAML-backed fleet topology.

# Contracts

The core never talks to the managed fleet directly. Every externally owned
resource sits behind a capability interface:

  - ComponentStateStore: per-node capability activation state
  - ClusterMembershipStore: pause/resume of cluster membership
  - QueueStore: transport queue depth and redirection
  - DatabaseCopyStore: database copy placement and mount state
  - Topology: fleet enumeration (zones, DAG membership)
  - OSControl: reboot/shutdown, confirmation-gated
  - Rebalancer: fire-and-forget fleet-wide rebalance

Each resource is mutated only by the component whose contract owns it; no
workflow step reaches across contracts.

# Error Taxonomy

UnreachableError propagates untouched (the convergence loop retries, the
aggregator does not). NoEligibleTargetError and PreconditionError are
terminal. Convergence timeouts live in pkg/poll and are classified per
step by the workflow engine.

# Inventory

Inventory implements Topology from a static fleet.yaml:

	nodes:
	  - name: mbx-01
	    zone: ams-1
	    dag: dag-a
	  - name: lab-01
	    zone: ams-1
	    non_production: true

File order is discovery order; the drain planner relies on it.
*/
package fleet
