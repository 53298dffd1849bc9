// Package workflow sequences node maintenance as an ordered list of
// idempotent steps.
//
// An Engine owns the collaborators (status aggregation, drain planning,
// copy relocation, membership control) and exposes three operations:
// EnterMaintenance drains a node out of service, ExitMaintenance restores
// it, and Watch streams read-only fleet snapshots.
//
// Every step follows the same micro-protocol: check whether the step's
// postcondition already holds (skip), gate on operator confirmation when
// destructive, perform the action, then poll until the observable
// post-state is reached. Steps that only affect redundancy warn on a
// convergence timeout and continue; steps whose failure would make the
// final OS action unsafe abort the workflow.
package workflow
