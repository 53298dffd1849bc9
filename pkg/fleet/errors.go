package fleet

import (
	"fmt"
)

// UnreachableError indicates a node could not be queried at all. It is
// propagated as-is, never retried at the aggregator level; retrying is the
// convergence loop's concern.
type UnreachableError struct {
	Node string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %s unreachable: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("node %s unreachable", e.Node)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// NoEligibleTargetError indicates every redirect candidate was itself in
// maintenance. Terminal: waiting will not manufacture a new eligible node,
// so the enter workflow aborts.
type NoEligibleTargetError struct {
	Node       string
	Considered int
}

func (e *NoEligibleTargetError) Error() string {
	return fmt.Sprintf("no eligible queue redirect target for %s (%d candidates considered)", e.Node, e.Considered)
}

// PreconditionError indicates the request was invalid before any mutation,
// e.g. the named node is not part of the managed fleet.
type PreconditionError struct {
	Node   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Node, e.Reason)
}
