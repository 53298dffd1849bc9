// Package relocate moves database copies off a node leaving service and
// restores placement when it returns.
package relocate

import (
	"context"
	"fmt"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/poll"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// Coordinator owns database copy placement during maintenance. It is the
// only component that mutates the DatabaseCopyStore.
type Coordinator struct {
	copies  fleet.DatabaseCopyStore
	pollCfg poll.Config
}

// NewCoordinator creates a relocation coordinator. pollCfg bounds the
// mounted-count convergence wait after relocation is triggered.
func NewCoordinator(copies fleet.DatabaseCopyStore, pollCfg poll.Config) *Coordinator {
	return &Coordinator{
		copies:  copies,
		pollCfg: pollCfg,
	}
}

// RelocateAway prepares a node to leave service: block automatic
// activation, flag activation-disabled-and-move-now, dismount copies of
// unreplicated databases (they have no other holder), trigger relocation
// of the remaining active copies, then wait for the mounted count to reach
// zero.
//
// A *poll.TimeoutError return means relocation was triggered but one or
// more copies are still mounted; callers are expected to downgrade it to a
// warning rather than block indefinitely on a stuck copy.
func (c *Coordinator) RelocateAway(ctx context.Context, node string) error {
	logger := log.WithComponent("relocate")

	if err := c.copies.SetActivationPolicy(ctx, node, types.ActivationBlocked); err != nil {
		return fmt.Errorf("failed to block activation on %s: %w", node, err)
	}
	if err := c.copies.SetMoveNow(ctx, node, true); err != nil {
		return fmt.Errorf("failed to flag move-now on %s: %w", node, err)
	}

	copies, err := c.copies.ListByHolder(ctx, node)
	if err != nil {
		return err
	}

	replicated := 0
	for _, copy := range copies {
		if copy.Status != types.CopyMounted {
			continue
		}
		if copy.Replication == types.ReplicationNone {
			logger.Info().Str("node", node).Str("database", copy.Database).Msg("dismounting unreplicated database")
			if err := c.copies.Dismount(ctx, copy); err != nil {
				return fmt.Errorf("failed to dismount %s: %w", copy.Database, err)
			}
			continue
		}
		replicated++
	}

	if replicated == 0 {
		// Nothing left to move; entering the wait would also divide by
		// zero in the percent-complete report below.
		logger.Info().Str("node", node).Msg("no mounted replicated copies, skipping relocation wait")
		return nil
	}

	if err := c.copies.TriggerMove(ctx, node); err != nil {
		return fmt.Errorf("failed to trigger copy relocation on %s: %w", node, err)
	}

	start := replicated
	return poll.Until(ctx, c.pollCfg, func(ctx context.Context) (bool, string, error) {
		mounted, err := c.MountedCount(ctx, node)
		if err != nil {
			return false, "", err
		}
		percent := (start - mounted) * 100 / start
		logger.Debug().Str("node", node).Int("mounted", mounted).Int("percent", percent).Msg("relocation progress")
		return mounted == 0, fmt.Sprintf("%d of %d copies still mounted (%d%% complete)", mounted, start, percent), nil
	})
}

// RelocateBack restores a returning node: re-enable unrestricted automatic
// activation, clear the move-now flag, rebalance replicated databases back
// toward their most-preferred holder, and mount unreplicated databases that
// belong on this node, restoring mount-at-startup.
func (c *Coordinator) RelocateBack(ctx context.Context, node string) error {
	if err := c.EnableAutoActivation(ctx, node); err != nil {
		return err
	}
	return c.RestorePlacement(ctx, node)
}

// EnableAutoActivation re-enables unrestricted automatic activation and
// clears the activation-disabled-and-move-now flag.
func (c *Coordinator) EnableAutoActivation(ctx context.Context, node string) error {
	if err := c.copies.SetActivationPolicy(ctx, node, types.ActivationUnrestricted); err != nil {
		return fmt.Errorf("failed to unblock activation on %s: %w", node, err)
	}
	if err := c.copies.SetMoveNow(ctx, node, false); err != nil {
		return fmt.Errorf("failed to clear move-now on %s: %w", node, err)
	}
	return nil
}

// RestorePlacement rebalances replicated databases back toward their
// most-preferred holder and mounts unreplicated databases that belong on
// this node.
func (c *Coordinator) RestorePlacement(ctx context.Context, node string) error {
	logger := log.WithComponent("relocate")

	if err := c.copies.TriggerMove(ctx, node); err != nil {
		return fmt.Errorf("failed to trigger rebalance toward %s: %w", node, err)
	}

	copies, err := c.copies.ListByHolder(ctx, node)
	if err != nil {
		return err
	}
	for _, copy := range copies {
		if copy.Replication == types.ReplicationNone && copy.Status == types.CopyDismounted {
			logger.Info().Str("node", node).Str("database", copy.Database).Msg("mounting unreplicated database")
			if err := c.copies.Mount(ctx, copy); err != nil {
				return fmt.Errorf("failed to mount %s: %w", copy.Database, err)
			}
		}
	}
	return nil
}

// MountedCount returns the number of copies currently mounted on node.
// Used both for relocation convergence and for the skip check of the
// relocate workflow step.
func (c *Coordinator) MountedCount(ctx context.Context, node string) (int, error) {
	copies, err := c.copies.ListByHolder(ctx, node)
	if err != nil {
		return 0, err
	}
	mounted := 0
	for _, copy := range copies {
		if copy.Status == types.CopyMounted {
			mounted++
		}
	}
	return mounted, nil
}
