/*
Package metrics exposes Prometheus instrumentation for Fleetmaint.

Counters and gauges cover workflow step outcomes, convergence wait
durations, queue redirection volume, and fleet-wide macro-state counts
refreshed by the watch loop. The Collector consumes the event broker so
orchestration code never imports prometheus directly; serve Handler()
alongside the watch dashboard to scrape.
*/
package metrics
