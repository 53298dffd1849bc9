package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oakmail/fleetmaint/pkg/drain"
	"github.com/oakmail/fleetmaint/pkg/events"
	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/membership"
	"github.com/oakmail/fleetmaint/pkg/metrics"
	"github.com/oakmail/fleetmaint/pkg/poll"
	"github.com/oakmail/fleetmaint/pkg/relocate"
	"github.com/oakmail/fleetmaint/pkg/status"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// OSAction is the OS-level action that follows a completed enter workflow.
type OSAction string

const (
	OSActionNone     OSAction = ""
	OSActionReboot   OSAction = "reboot"
	OSActionShutdown OSAction = "shutdown"
)

// Options tunes one workflow invocation.
type Options struct {
	// ConfirmEachStep gates every step on the Confirmer, not only the
	// destructive ones.
	ConfirmEachStep bool

	// OSAction is triggered by the final enter step once the maintenance
	// macro-state is confirmed. None skips the OS action and leaves the
	// node parked in maintenance.
	OSAction OSAction

	// DryRun evaluates applicability and idempotency checks but performs
	// no action and waits for no convergence.
	DryRun bool
}

// Config wires an Engine. Topology, Components, Membership, Queues and
// Copies are required; OSControl, Rebalancer, Prober and Confirmer are
// optional (a nil Confirmer auto-approves).
type Config struct {
	Topology   fleet.Topology
	Components fleet.ComponentStateStore
	Membership fleet.ClusterMembershipStore
	Queues     fleet.QueueStore
	Copies     fleet.DatabaseCopyStore
	OSControl  fleet.OSControl
	Rebalancer fleet.Rebalancer

	Broker    *events.Broker
	Confirmer Confirmer
	Prober    Prober

	// Converge is the default step budget; MembershipConverge and
	// RelocationConverge bound the waits inside their components.
	Converge           poll.Config
	MembershipConverge poll.Config
	RelocationConverge poll.Config

	// Requester tags component mutations for attribution.
	Requester string

	// Seed fixes the drain planner's in-zone shuffle; 0 derives from time.
	Seed int64
}

// Prober measures node reachability for watch snapshots.
type Prober interface {
	Probe(ctx context.Context, node string) (latency time.Duration, reachable bool)
}

// Engine sequences maintenance workflows. One engine serves any number of
// concurrent single-node workflows: domain state lives in the external
// stores, per-invocation context (node, run id, options) is passed
// explicitly, and the planner's shuffle source synchronizes internally.
type Engine struct {
	cfg        Config
	status     *status.Aggregator
	planner    *drain.Planner
	relocator  *relocate.Coordinator
	membership *membership.Controller
	confirmer  Confirmer
	logger     zerolog.Logger
}

// NewEngine creates a workflow engine from its collaborator wiring.
func NewEngine(cfg Config) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	confirmer := cfg.Confirmer
	if confirmer == nil {
		confirmer = AutoApprove{}
	}

	agg := status.NewAggregator(cfg.Components, cfg.Membership)
	return &Engine{
		cfg:        cfg,
		status:     agg,
		planner:    drain.NewPlanner(cfg.Topology, agg, seed),
		relocator:  relocate.NewCoordinator(cfg.Copies, cfg.RelocationConverge),
		membership: membership.NewController(cfg.Membership, cfg.MembershipConverge),
		confirmer:  confirmer,
		logger:     log.WithComponent("workflow"),
	}
}

// SetProber attaches a reachability prober for watch snapshots. Workflow
// decisions never consult it.
func (e *Engine) SetProber(p Prober) {
	e.cfg.Prober = p
}

// Status exposes the engine's status aggregator for read-only callers.
func (e *Engine) Status() *status.Aggregator {
	return e.status
}

// EnterMaintenance drains the node out of active service and, once the
// maintenance macro-state is confirmed, optionally triggers the requested
// OS action. Safe to re-invoke after a partial failure: every step skips
// itself when its post-state already holds.
func (e *Engine) EnterMaintenance(ctx context.Context, nodeName string, opts Options) (types.MaintenanceStatus, error) {
	node, err := e.cfg.Topology.GetNode(ctx, nodeName)
	if err != nil {
		return types.MaintenanceStatus{}, err
	}
	return e.run(ctx, "enter", node, opts, e.enterSteps(node, opts))
}

// ExitMaintenance restores the node into active service and, once the
// connected macro-state is confirmed, fires the fleet-wide rebalance
// without waiting for it.
func (e *Engine) ExitMaintenance(ctx context.Context, nodeName string, opts Options) (types.MaintenanceStatus, error) {
	node, err := e.cfg.Topology.GetNode(ctx, nodeName)
	if err != nil {
		return types.MaintenanceStatus{}, err
	}
	return e.run(ctx, "exit", node, opts, e.exitSteps(node, opts))
}

// run executes the step list strictly sequentially: each step's
// postcondition is the next step's precondition.
func (e *Engine) run(ctx context.Context, direction string, node *types.Node, opts Options, steps []*Step) (types.MaintenanceStatus, error) {
	runID := uuid.New().String()
	logger := e.logger.With().Str("node", node.Name).Str("run_id", runID).Str("workflow", direction).Logger()

	// The step count is fixed at workflow start so "step i of N" stays
	// consistent for this node shape.
	total := len(steps)
	logger.Info().Int("steps", total).Bool("dag_member", node.IsDAGMember()).Msg("workflow starting")
	e.publish(&events.Event{
		Type: events.EventWorkflowStarted, Node: node.Name, RunID: runID, StepCount: total,
		Message: fmt.Sprintf("%s maintenance: %d steps", direction, total),
	})

	for i, step := range steps {
		if err := e.runStep(ctx, logger, node, runID, i+1, total, step, opts); err != nil {
			metrics.WorkflowRunsTotal.WithLabelValues(direction, "aborted").Inc()
			e.publish(&events.Event{
				Type: events.EventWorkflowAborted, Node: node.Name, RunID: runID,
				Step: step.Name, StepIndex: i + 1, StepCount: total,
				Message: err.Error(),
			})
			return types.MaintenanceStatus{}, err
		}
	}

	final, err := e.status.GetStatus(ctx, node.Name)
	if err != nil {
		metrics.WorkflowRunsTotal.WithLabelValues(direction, "aborted").Inc()
		return types.MaintenanceStatus{}, err
	}

	metrics.WorkflowRunsTotal.WithLabelValues(direction, "completed").Inc()
	logger.Info().Str("macro_state", string(final.State)).Msg("workflow completed")
	e.publish(&events.Event{
		Type: events.EventWorkflowCompleted, Node: node.Name, RunID: runID, StepCount: total,
		Message: fmt.Sprintf("macro-state %s", final.State),
	})
	return final, nil
}

func (e *Engine) runStep(ctx context.Context, logger zerolog.Logger, node *types.Node, runID string, index, total int, step *Step, opts Options) error {
	stepLogger := logger.With().Str("step", step.Name).Int("index", index).Int("total", total).Logger()
	e.publish(&events.Event{
		Type: events.EventStepStarted, Node: node.Name, RunID: runID,
		Step: step.Name, StepIndex: index, StepCount: total,
	})

	// Idempotency check: skips are silent successes.
	skipped, reason, err := step.Skip(ctx)
	if err != nil {
		return fmt.Errorf("step %d/%d %s precheck failed: %w", index, total, step.Name, err)
	}
	if skipped {
		stepLogger.Info().Str("reason", reason).Msg("step skipped")
		e.publish(&events.Event{
			Type: events.EventStepSkipped, Node: node.Name, RunID: runID,
			Step: step.Name, StepIndex: index, StepCount: total, Message: reason,
		})
		return nil
	}

	if opts.DryRun {
		stepLogger.Info().Msg("dry run: step would execute")
		e.publish(&events.Event{
			Type: events.EventStepCompleted, Node: node.Name, RunID: runID,
			Step: step.Name, StepIndex: index, StepCount: total, Message: "dry run",
		})
		return nil
	}

	// Confirmation gate.
	if opts.ConfirmEachStep || step.Destructive {
		prompt := fmt.Sprintf("step %d/%d %s on %s", index, total, step.Name, node.Name)
		approved, err := e.confirmer.Confirm(ctx, prompt)
		if err != nil {
			return fmt.Errorf("confirmation failed for %s: %w", step.Name, err)
		}
		if !approved {
			return fmt.Errorf("step %d/%d %s declined by operator", index, total, step.Name)
		}
	}

	// Action. Components that wait internally surface their own timeout;
	// classify it exactly like a convergence timeout below.
	err = step.Run(ctx)
	if err == nil && step.Converge != nil {
		timer := metrics.NewTimer()
		err = poll.Until(ctx, step.Converge.Config, step.Converge.Probe)
		timer.ObserveDurationVec(metrics.ConvergenceWaitSeconds, step.Name)
	}

	if err != nil {
		var timeout *poll.TimeoutError
		if errors.As(err, &timeout) && step.OnTimeout == WarnAndContinue {
			stepLogger.Warn().Int("attempts", timeout.Attempts).Str("last_observed", timeout.LastObserved).
				Msg("step did not converge, continuing")
			e.publish(&events.Event{
				Type: events.EventStepWarning, Node: node.Name, RunID: runID,
				Step: step.Name, StepIndex: index, StepCount: total, Message: timeout.Error(),
			})
			return nil
		}
		return fmt.Errorf("step %d/%d %s: %w", index, total, step.Name, err)
	}

	stepLogger.Info().Msg("step completed")
	e.publish(&events.Event{
		Type: events.EventStepCompleted, Node: node.Name, RunID: runID,
		Step: step.Name, StepIndex: index, StepCount: total,
	})
	return nil
}

// filterSteps drops DAG-only steps for nodes without replicated-group
// membership. The branching condition is evaluated once here, not inside
// individual steps, so step numbering stays consistent.
func filterSteps(node *types.Node, steps []*Step) []*Step {
	if node.IsDAGMember() {
		return steps
	}
	var kept []*Step
	for _, step := range steps {
		if !step.DAGOnly {
			kept = append(kept, step)
		}
	}
	return kept
}

func (e *Engine) publish(event *events.Event) {
	if e.cfg.Broker == nil {
		return
	}
	event.ID = uuid.New().String()
	e.cfg.Broker.Publish(event)
}
