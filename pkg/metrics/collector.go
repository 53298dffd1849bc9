package metrics

import (
	"github.com/oakmail/fleetmaint/pkg/events"
	"github.com/oakmail/fleetmaint/pkg/types"
)

// Collector feeds workflow event outcomes into the step counters. It
// subscribes to the event broker so the workflow engine stays free of any
// metrics dependency.
type Collector struct {
	broker *events.Broker
	sub    events.Subscriber
	stopCh chan struct{}
}

// NewCollector creates a collector over the given broker.
func NewCollector(broker *events.Broker) *Collector {
	return &Collector{
		broker: broker,
		stopCh: make(chan struct{}),
	}
}

// Start begins consuming events.
func (c *Collector) Start() {
	c.sub = c.broker.Subscribe()
	go c.run()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
	c.broker.Unsubscribe(c.sub)
}

func (c *Collector) run() {
	for {
		select {
		case event, ok := <-c.sub:
			if !ok {
				return
			}
			c.record(event)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) record(event *events.Event) {
	switch event.Type {
	case events.EventStepSkipped:
		WorkflowStepsTotal.WithLabelValues(event.Step, "skipped").Inc()
	case events.EventStepCompleted:
		WorkflowStepsTotal.WithLabelValues(event.Step, "completed").Inc()
	case events.EventStepWarning:
		WorkflowStepsTotal.WithLabelValues(event.Step, "warning").Inc()
	case events.EventWorkflowAborted:
		WorkflowStepsTotal.WithLabelValues(event.Step, "aborted").Inc()
	}
}

// ObserveSnapshot updates the fleet gauges from one watch cycle.
func ObserveSnapshot(snapshot types.Snapshot) {
	counts := map[types.MacroState]int{
		types.MacroConnected:     0,
		types.MacroTransitioning: 0,
		types.MacroMaintenance:   0,
	}
	unreachable := 0
	for _, ns := range snapshot.Nodes {
		if ns.Err != nil {
			unreachable++
			continue
		}
		counts[ns.Status.State]++
	}

	for state, n := range counts {
		NodesTotal.WithLabelValues(string(state)).Set(float64(n))
	}
	NodesUnreachable.Set(float64(unreachable))
}
