package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/oakmail/fleetmaint/pkg/metrics"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// Watch runs the read-only dashboard loop: one fleet snapshot immediately,
// then one per interval, until ctx is cancelled. It never mutates fleet
// state. The returned channel is closed on cancellation; cancellation
// interrupts the inter-cycle sleep promptly.
func (e *Engine) Watch(ctx context.Context, interval time.Duration) <-chan types.Snapshot {
	out := make(chan types.Snapshot)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			snapshot := e.snapshot(ctx)
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// snapshot reads status for every fleet node. Per-node reads are
// independent and run concurrently; one unreachable node never delays or
// fails the rest of the cycle.
func (e *Engine) snapshot(ctx context.Context) types.Snapshot {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.WatchCycleDuration)
		metrics.WatchCyclesTotal.Inc()
	}()

	snapshot := types.Snapshot{TakenAt: time.Now()}

	nodes, err := e.cfg.Topology.ListNodes(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to enumerate fleet")
		return snapshot
	}

	snapshot.Nodes = make([]types.NodeStatus, len(nodes))

	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node *types.Node) {
			defer wg.Done()

			observed := *node
			if e.cfg.Prober != nil {
				latency, reachable := e.cfg.Prober.Probe(ctx, node.Name)
				observed.Latency = latency
				observed.Reachable = reachable
			}

			st, err := e.status.GetStatus(ctx, node.Name)
			snapshot.Nodes[i] = types.NodeStatus{Node: &observed, Status: st, Err: err}
		}(i, node)
	}
	wg.Wait()

	return snapshot
}
