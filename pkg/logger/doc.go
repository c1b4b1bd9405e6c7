// Package logger provides the structured logging interface used across
// setupsync.
//
// It wraps zerolog with a small interface so components can be handed a
// logger and tests can swap in NewTestLogger or NewNopLogger.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("link", link).Info("Setup installed")
//	log.InfoWithFields("Found setups", map[string]interface{}{"count": n})
//
// NewWithOptions lets a caller drop the console (for the full-screen
// dashboard) and attach extra writers such as an EventWriter, which turns each
// JSON log line into a progress.Event without blocking the caller.
package logger
