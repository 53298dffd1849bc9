// Package drain computes where a draining node's queued mail should go.
//
// Candidate ordering is site-local first: the source node's own zone leads,
// remaining zones follow in discovery order, and candidates inside each
// zone are shuffled to spread redirect load. Redirecting into another
// draining or offline node would strand messages, so eligibility is
// decided against the live maintenance macro-state of each candidate.
package drain

import (
	"context"
	"math/rand"
	"sync"

	"github.com/oakmail/fleetmaint/pkg/fleet"
	"github.com/oakmail/fleetmaint/pkg/log"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// StatusReader is the slice of the status aggregator the planner needs.
type StatusReader interface {
	GetStatus(ctx context.Context, node string) (types.MaintenanceStatus, error)
}

// Planner selects queue redirect targets for a draining node. One planner
// serves concurrent workflows; the shuffle source is its only mutable
// state and is guarded by mu (rand.Rand is not safe for concurrent use).
type Planner struct {
	topology fleet.Topology
	status   StatusReader

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlanner creates a drain planner. seed fixes the in-zone shuffle order;
// pass a time-derived seed in production and a constant in tests.
func NewPlanner(topology fleet.Topology, status StatusReader, seed int64) *Planner {
	return &Planner{
		topology: topology,
		status:   status,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// PlanTargets returns the ordered redirect candidate list for source. The
// source itself and non-production hosts are excluded.
func (p *Planner) PlanTargets(ctx context.Context, source *types.Node) ([]*types.Node, error) {
	nodes, err := p.topology.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	byZone := make(map[string][]*types.Node)
	var zones []string
	for _, node := range nodes {
		if node.Name == source.Name || node.NonProduction {
			continue
		}
		if _, seen := byZone[node.Zone]; !seen {
			zones = append(zones, node.Zone)
		}
		byZone[node.Zone] = append(byZone[node.Zone], node)
	}

	// Source zone leads; the rest keep discovery order.
	ordered := make([]string, 0, len(zones))
	if _, ok := byZone[source.Zone]; ok {
		ordered = append(ordered, source.Zone)
	}
	for _, zone := range zones {
		if zone != source.Zone {
			ordered = append(ordered, zone)
		}
	}

	var candidates []*types.Node
	p.mu.Lock()
	for _, zone := range ordered {
		group := byZone[zone]
		p.rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		candidates = append(candidates, group...)
	}
	p.mu.Unlock()
	return candidates, nil
}

// SelectEligibleTarget returns the first candidate whose macro-state is not
// Maintenance. Unreachable candidates are skipped. When no candidate
// qualifies the error is terminal: waiting will not manufacture a new
// eligible node.
func (p *Planner) SelectEligibleTarget(ctx context.Context, source *types.Node, candidates []*types.Node) (*types.Node, error) {
	logger := log.WithComponent("drain")

	for _, candidate := range candidates {
		st, err := p.status.GetStatus(ctx, candidate.Name)
		if err != nil {
			logger.Warn().Err(err).Str("candidate", candidate.Name).Msg("skipping unqueryable redirect candidate")
			continue
		}
		if st.State != types.MacroMaintenance {
			return candidate, nil
		}
	}

	return nil, &fleet.NoEligibleTargetError{
		Node:       source.Name,
		Considered: len(candidates),
	}
}
