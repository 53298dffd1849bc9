package workflow

import (
	"context"

	"github.com/oakmail/fleetmaint/pkg/poll"
)

// TimeoutPolicy classifies an exhausted convergence budget.
type TimeoutPolicy string

const (
	// WarnAndContinue accepts partial success: the step reports a warning
	// and the workflow proceeds. Used where the step's effect is
	// best-effort (cluster pause, activation-flag propagation, a stuck
	// copy).
	WarnAndContinue TimeoutPolicy = "warn"

	// AbortOnTimeout halts the workflow: proceeding past this step without
	// convergence would make the final OS-level action unsafe.
	AbortOnTimeout TimeoutPolicy = "abort"
)

// Step is one ordered unit of a maintenance workflow. Steps are stateless
// descriptors built fresh per invocation as closures over the target node;
// re-running a workflow re-evaluates every predicate against current
// external state.
type Step struct {
	// Name labels the step in events, logs and metrics.
	Name string

	// DAGOnly steps apply only to nodes with replicated-group membership
	// and are filtered out of the step list at workflow start.
	DAGOnly bool

	// Destructive steps are confirmation-gated even when the caller did
	// not ask to confirm each step.
	Destructive bool

	// OnTimeout classifies convergence timeouts from Converge or from the
	// action itself.
	OnTimeout TimeoutPolicy

	// Skip is the idempotency check: it reports true with a reason when
	// the node is already past this step. Skips never raise outcome
	// errors; a returned error means the check itself could not run.
	Skip func(ctx context.Context) (bool, string, error)

	// Run invokes the step's action against the owning component.
	Run func(ctx context.Context) error

	// Converge, when set, is polled after Run until the step's target
	// condition holds or the budget is exhausted.
	Converge *Convergence
}

// Convergence pairs a probe with its retry budget.
type Convergence struct {
	Probe  poll.Probe
	Config poll.Config
}

// Confirmer gates destructive steps on an explicit operator decision. The
// engine calls out to it; ownership of the interaction (prompt, flag,
// automation policy) stays with the caller.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// AutoApprove is a Confirmer that approves everything. Used by automation
// callers and tests.
type AutoApprove struct{}

// Confirm always approves.
func (AutoApprove) Confirm(ctx context.Context, prompt string) (bool, error) {
	return true, nil
}
