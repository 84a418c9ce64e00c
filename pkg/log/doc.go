/*
Package log provides structured logging for the discovery service using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Configuration:
  - Level: debug/info/warn/error threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: tag all records with the emitting component
  - WithClusterID: tag all records with a cluster ID

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Structured Logging:

	log.Logger.Info().
		Str("cluster_id", "talos-default").
		Int("affiliates", 3).
		Msg("Cluster state exported")

Component Loggers:

	gcLog := log.WithComponent("gc")
	gcLog.Info().Msg("Garbage collector started")
*/
package log
