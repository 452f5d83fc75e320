// Package logging provides structured logging for the Multy client.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the dispatcher, the poller and the event stream.
//
// # Log Levels
//
//   - Debug: envelope dumps, per-attempt call outcomes, retries
//   - Info: state change events, resource recovery, subscriber connections
//   - Warn: unavailable resources, protocol shape mismatches
//   - Error: startup failures
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or MULTY_LOG_LEVEL is set:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format so that command output on stdout
// stays machine-readable.
package logging
