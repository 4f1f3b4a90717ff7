// Package logging provides structured logging for the wccp tools.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the codebase, plus a few protocol-specific
// helpers for the stream framer and byte sources.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, dropped frames, resyncs)
//   - Info: Normal operations (sources opened, relay clients, exports)
//   - Warn: Non-fatal issues (client drops, short reads)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Relay client connected",
//	    zap.String("client_id", id),
//	    zap.String("remote_addr", r.RemoteAddr),
//	)
//
// # Configuration
//
// Logging is silent until initialized. Initialize at startup:
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "debug",
//	    File:  "/var/log/wccp.log",
//	}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to the WCCP_LOG_LEVEL environment variable. When
// File is set, lines are also written as JSON to a size-rotated file.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once initialized.
package logging
