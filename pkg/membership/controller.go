// Package membership wraps pause and resume of a node's cluster membership
// in idempotent, convergence-waited operations.
//
// Cluster suspension is best-effort: component deactivation, not membership
// state, is the authoritative maintenance signal, so callers are expected
// to downgrade a pause that never left Up to a warning and proceed.
package membership

import (
	"context"
	"fmt"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/poll"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// Controller owns cluster membership mutations during maintenance.
type Controller struct {
	store   fleet.ClusterMembershipStore
	pollCfg poll.Config
}

// NewController creates a membership controller. pollCfg bounds the wait
// for the membership state to converge after pause or resume.
func NewController(store fleet.ClusterMembershipStore, pollCfg poll.Config) *Controller {
	return &Controller{
		store:   store,
		pollCfg: pollCfg,
	}
}

// Pause drains and pauses the node's cluster membership, then waits for it
// to leave Up. Already-paused (or down) nodes are a successful no-op.
func (c *Controller) Pause(ctx context.Context, node string) error {
	m, err := c.store.GetMembership(ctx, node)
	if err != nil {
		return err
	}
	if m.State != types.MembershipUp {
		logger := log.WithComponent("membership")
		logger.Info().Str("node", node).Str("state", string(m.State)).Msg("membership already paused")
		return nil
	}

	if err := c.store.Pause(ctx, node); err != nil {
		return fmt.Errorf("failed to pause membership of %s: %w", node, err)
	}

	return poll.Until(ctx, c.pollCfg, func(ctx context.Context) (bool, string, error) {
		m, err := c.store.GetMembership(ctx, node)
		if err != nil {
			return false, "", err
		}
		return m.State != types.MembershipUp, fmt.Sprintf("membership %s (draining=%t)", m.State, m.Draining), nil
	})
}

// Resume un-pauses the node's cluster membership and waits for Up.
// Already-up nodes are a successful no-op.
func (c *Controller) Resume(ctx context.Context, node string) error {
	m, err := c.store.GetMembership(ctx, node)
	if err != nil {
		return err
	}
	if m.State == types.MembershipUp && !m.Draining {
		logger := log.WithComponent("membership")
		logger.Info().Str("node", node).Msg("membership already up")
		return nil
	}

	if err := c.store.Resume(ctx, node); err != nil {
		return fmt.Errorf("failed to resume membership of %s: %w", node, err)
	}

	return poll.Until(ctx, c.pollCfg, func(ctx context.Context) (bool, string, error) {
		m, err := c.store.GetMembership(ctx, node)
		if err != nil {
			return false, "", err
		}
		return m.State == types.MembershipUp && !m.Draining, fmt.Sprintf("membership %s", m.State), nil
	})
}
