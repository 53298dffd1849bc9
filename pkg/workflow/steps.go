package workflow

import (
	"context"
	"fmt"

	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/metrics"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// excludedFromDrain lists the delivery classes that never need
// redirection: shadow copies exist only for redundancy and are discarded
// with their owner.
var excludedFromDrain = []types.QueueClass{types.QueueClassShadow}

// enterSteps builds the ordered step list for draining node out of
// service. Timeout policies follow one rule: a step whose failure would
// make the final OS action unsafe aborts, everything else warns and
// continues.
//
//	step                   applies   on timeout
//	drain-transport        always    warn
//	redirect-queues        always    abort
//	suspend-membership     DAG       warn
//	relocate-copies        DAG       warn
//	deactivate-components  always    abort
//	finalize-maintenance   always    abort
func (e *Engine) enterSteps(node *types.Node, opts Options) []*Step {
	name := node.Name

	steps := []*Step{
		{
			Name:      "drain-transport",
			OnTimeout: WarnAndContinue,
			Skip: func(ctx context.Context) (bool, string, error) {
				state, err := e.cfg.Components.GetComponent(ctx, name, types.CapabilityTransport)
				if err != nil {
					return false, "", err
				}
				if state != types.ComponentActive {
					return true, fmt.Sprintf("transport already %s", state), nil
				}
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				return e.cfg.Components.SetComponent(ctx, name, types.CapabilityTransport, types.ComponentDraining, e.cfg.Requester)
			},
			Converge: &Convergence{
				Config: e.cfg.Converge,
				Probe: func(ctx context.Context) (bool, string, error) {
					state, err := e.cfg.Components.GetComponent(ctx, name, types.CapabilityTransport)
					if err != nil {
						return false, "", err
					}
					return state == types.ComponentDraining, fmt.Sprintf("transport %s", state), nil
				},
			},
		},
		{
			Name:        "redirect-queues",
			Destructive: true,
			OnTimeout:   AbortOnTimeout,
			Skip: func(ctx context.Context) (bool, string, error) {
				depth, err := e.cfg.Queues.GetDepth(ctx, name, excludedFromDrain)
				if err != nil {
					return false, "", err
				}
				if depth == 0 {
					return true, "queues already empty", nil
				}
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				depth, err := e.cfg.Queues.GetDepth(ctx, name, excludedFromDrain)
				if err != nil {
					return err
				}

				candidates, err := e.planner.PlanTargets(ctx, node)
				if err != nil {
					return err
				}
				// NoEligibleTargetError is terminal and aborts here,
				// before any queue state is touched.
				target, err := e.planner.SelectEligibleTarget(ctx, node, candidates)
				if err != nil {
					return err
				}

				logger := log.WithComponent("workflow")
				logger.Info().Str("node", name).Str("target", target.Name).
					Int("messages", depth).Msg("redirecting queued messages")
				if err := e.cfg.Queues.Redirect(ctx, name, target.Name); err != nil {
					return err
				}
				metrics.MessagesRedirectedTotal.Add(float64(depth))
				return nil
			},
			Converge: &Convergence{
				Config: e.cfg.Converge,
				Probe: func(ctx context.Context) (bool, string, error) {
					depth, err := e.cfg.Queues.GetDepth(ctx, name, excludedFromDrain)
					if err != nil {
						return false, "", err
					}
					return depth == 0, fmt.Sprintf("%d messages still queued", depth), nil
				},
			},
		},
		{
			Name:      "suspend-membership",
			DAGOnly:   true,
			OnTimeout: WarnAndContinue,
			Skip: func(ctx context.Context) (bool, string, error) {
				m, err := e.cfg.Membership.GetMembership(ctx, name)
				if err != nil {
					return false, "", err
				}
				if m.State != types.MembershipUp {
					return true, fmt.Sprintf("membership already %s", m.State), nil
				}
				return false, "", nil
			},
			// Pause waits internally; a timeout surfaces here and is
			// downgraded per the policy table.
			Run: func(ctx context.Context) error {
				return e.membership.Pause(ctx, name)
			},
		},
		{
			Name:        "relocate-copies",
			DAGOnly:     true,
			Destructive: true,
			OnTimeout:   WarnAndContinue,
			Skip: func(ctx context.Context) (bool, string, error) {
				copies, err := e.cfg.Copies.ListByHolder(ctx, name)
				if err != nil {
					return false, "", err
				}
				if len(copies) == 0 {
					return true, "node hosts no database copies", nil
				}
				relocated := true
				for _, c := range copies {
					if c.Status == types.CopyMounted || c.Policy != types.ActivationBlocked || !c.MoveNow {
						relocated = false
						break
					}
				}
				if relocated {
					return true, "copies already relocated", nil
				}
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				return e.relocator.RelocateAway(ctx, name)
			},
		},
		{
			Name:        "deactivate-components",
			Destructive: true,
			OnTimeout:   AbortOnTimeout,
			Skip: func(ctx context.Context) (bool, string, error) {
				inactive, err := e.componentsAll(ctx, name, types.ComponentInactive)
				if err != nil {
					return false, "", err
				}
				if inactive {
					return true, "components already inactive", nil
				}
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				for _, capability := range types.TrackedCapabilities {
					if err := e.cfg.Components.SetComponent(ctx, name, capability, types.ComponentInactive, e.cfg.Requester); err != nil {
						return err
					}
				}
				return nil
			},
			Converge: &Convergence{
				Config: e.cfg.Converge,
				Probe: func(ctx context.Context) (bool, string, error) {
					st, err := e.status.GetStatus(ctx, name)
					if err != nil {
						return false, "", err
					}
					return st.InMaintenance(), fmt.Sprintf("macro-state %s", st.State), nil
				},
			},
		},
		{
			Name:        "finalize-maintenance",
			Destructive: opts.OSAction != OSActionNone,
			OnTimeout:   AbortOnTimeout,
			Skip: func(ctx context.Context) (bool, string, error) {
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				st, err := e.status.GetStatus(ctx, name)
				if err != nil {
					return err
				}
				if !st.InMaintenance() {
					return fmt.Errorf("node %s is %s, not in maintenance; refusing to finalize", name, st.State)
				}

				switch opts.OSAction {
				case OSActionNone:
					return nil
				case OSActionReboot:
					return e.cfg.OSControl.Reboot(ctx, name)
				case OSActionShutdown:
					return e.cfg.OSControl.Shutdown(ctx, name)
				default:
					return fmt.Errorf("unknown OS action %q", opts.OSAction)
				}
			},
		},
	}

	return filterSteps(node, steps)
}

// exitSteps builds the ordered step list for restoring node into service.
//
//	step                    applies   on timeout
//	activate-components     always    abort
//	resume-membership       DAG       warn
//	enable-auto-activation  DAG       warn
//	restore-copies          always    warn
//	confirm-connected       always    abort
func (e *Engine) exitSteps(node *types.Node, opts Options) []*Step {
	name := node.Name

	steps := []*Step{
		{
			Name:      "activate-components",
			OnTimeout: AbortOnTimeout,
			Skip: func(ctx context.Context) (bool, string, error) {
				active, err := e.componentsAll(ctx, name, types.ComponentActive)
				if err != nil {
					return false, "", err
				}
				if active {
					return true, "components already active", nil
				}
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				for _, capability := range types.TrackedCapabilities {
					if err := e.cfg.Components.SetComponent(ctx, name, capability, types.ComponentActive, e.cfg.Requester); err != nil {
						return err
					}
				}
				return nil
			},
			Converge: &Convergence{
				Config: e.cfg.Converge,
				Probe: func(ctx context.Context) (bool, string, error) {
					active, err := e.componentsAll(ctx, name, types.ComponentActive)
					if err != nil {
						return false, "", err
					}
					return active, "components activating", nil
				},
			},
		},
		{
			Name:      "resume-membership",
			DAGOnly:   true,
			OnTimeout: WarnAndContinue,
			Skip: func(ctx context.Context) (bool, string, error) {
				m, err := e.cfg.Membership.GetMembership(ctx, name)
				if err != nil {
					return false, "", err
				}
				if m.State == types.MembershipUp && !m.Draining {
					return true, "membership already up", nil
				}
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				return e.membership.Resume(ctx, name)
			},
		},
		{
			Name:      "enable-auto-activation",
			DAGOnly:   true,
			OnTimeout: WarnAndContinue,
			Skip: func(ctx context.Context) (bool, string, error) {
				copies, err := e.cfg.Copies.ListByHolder(ctx, name)
				if err != nil {
					return false, "", err
				}
				if len(copies) == 0 {
					return true, "node hosts no database copies", nil
				}
				for _, c := range copies {
					if c.Policy != types.ActivationUnrestricted || c.MoveNow {
						return false, "", nil
					}
				}
				return true, "activation already unrestricted", nil
			},
			Run: func(ctx context.Context) error {
				return e.relocator.EnableAutoActivation(ctx, name)
			},
			Converge: &Convergence{
				Config: e.cfg.Converge,
				Probe: func(ctx context.Context) (bool, string, error) {
					copies, err := e.cfg.Copies.ListByHolder(ctx, name)
					if err != nil {
						return false, "", err
					}
					blocked := 0
					for _, c := range copies {
						if c.Policy != types.ActivationUnrestricted || c.MoveNow {
							blocked++
						}
					}
					return blocked == 0, fmt.Sprintf("%d copies still blocked", blocked), nil
				},
			},
		},
		{
			Name:      "restore-copies",
			OnTimeout: WarnAndContinue,
			Skip: func(ctx context.Context) (bool, string, error) {
				copies, err := e.cfg.Copies.ListByHolder(ctx, name)
				if err != nil {
					return false, "", err
				}
				for _, c := range copies {
					if c.Replication == types.ReplicationNone && c.Status == types.CopyDismounted {
						return false, "", nil
					}
					if c.Replication == types.ReplicationReplicated && c.PreferredHolder == name && c.Status != types.CopyMounted {
						return false, "", nil
					}
				}
				return true, "copy placement already restored", nil
			},
			Run: func(ctx context.Context) error {
				return e.relocator.RestorePlacement(ctx, name)
			},
		},
		{
			Name:      "confirm-connected",
			OnTimeout: AbortOnTimeout,
			Skip: func(ctx context.Context) (bool, string, error) {
				return false, "", nil
			},
			Run: func(ctx context.Context) error {
				st, err := e.status.GetStatus(ctx, name)
				if err != nil {
					return err
				}
				if st.State != types.MacroConnected {
					return fmt.Errorf("node %s is %s, not connected", name, st.State)
				}

				// Fire-and-forget: the workflow never waits on the
				// fleet-wide rebalance.
				if e.cfg.Rebalancer != nil {
					go func() {
						if err := e.cfg.Rebalancer.RebalanceFleet(context.Background()); err != nil {
							e.logger.Warn().Err(err).Msg("fleet rebalance failed")
						}
					}()
				}
				return nil
			},
		},
	}

	return filterSteps(node, steps)
}

// componentsAll reports whether every tracked capability is in want state.
func (e *Engine) componentsAll(ctx context.Context, node string, want types.ComponentState) (bool, error) {
	for _, capability := range types.TrackedCapabilities {
		state, err := e.cfg.Components.GetComponent(ctx, node, capability)
		if err != nil {
			return false, err
		}
		if state != want {
			return false, nil
		}
	}
	return true, nil
}
