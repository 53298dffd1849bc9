package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetmaint_nodes_total",
			Help: "Total number of fleet nodes by maintenance macro-state",
		},
		[]string{"macro_state"},
	)

	NodesUnreachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetmaint_nodes_unreachable",
			Help: "Number of fleet nodes that could not be queried in the last watch cycle",
		},
	)

	// Workflow metrics
	WorkflowRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetmaint_workflow_runs_total",
			Help: "Total number of workflow invocations by direction and result",
		},
		[]string{"workflow", "result"},
	)

	WorkflowStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetmaint_workflow_steps_total",
			Help: "Total number of workflow steps by name and outcome",
		},
		[]string{"step", "outcome"},
	)

	ConvergenceWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetmaint_convergence_wait_seconds",
			Help:    "Time spent waiting for a step's target condition in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"step"},
	)

	MessagesRedirectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetmaint_messages_redirected_total",
			Help: "Total number of queued messages redirected off draining nodes",
		},
	)

	// Watch metrics
	WatchCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetmaint_watch_cycles_total",
			Help: "Total number of fleet status refresh cycles",
		},
	)

	WatchCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetmaint_watch_cycle_duration_seconds",
			Help:    "Fleet status refresh cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(NodesUnreachable)
	prometheus.MustRegister(WorkflowRunsTotal)
	prometheus.MustRegister(WorkflowStepsTotal)
	prometheus.MustRegister(ConvergenceWaitSeconds)
	prometheus.MustRegister(MessagesRedirectedTotal)
	prometheus.MustRegister(WatchCyclesTotal)
	prometheus.MustRegister(WatchCycleDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
