/*
Package events provides an in-memory broker for maintenance orchestration
events.

The workflow engine publishes one event per step outcome (started, skipped,
completed, completed-with-warning) plus workflow lifecycle events; the CLI
subscribes for progress rendering and the metrics package counts outcomes.
Publish is non-blocking and slow subscribers are skipped rather than
allowed to stall a workflow.
*/
package events
