/*
Package log provides structured logging for Fleetmaint using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. Workflow code attaches node and run_id fields so
two concurrent maintenance runs on different nodes stay distinguishable in
one log stream.

Initialize once at startup:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})

Then derive child loggers per concern:

	logger := log.WithComponent("workflow")
	logger.Info().Str("node", "mbx-03").Msg("entering maintenance")
*/
package log
