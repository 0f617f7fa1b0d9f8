// Package logger provides the structured logging interface used across the
// course scraper.
//
// It wraps zerolog behind the Logger interface with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Colored console output on stderr
// - Optional JSON file output alongside the console
// - A global logger instance for command wiring
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.Info("Application started")
//	logger.WithField("entry", "Algorithms").Info("Traversing entry")
//	logger.WithError(err).Error("Run aborted")
//
// Pipeline helpers:
//
//	logger.LogStage(log, "TRAVERSE", map[string]interface{}{"entries": 12})
//	logger.LogDownload(log, "Algorithms", "Assignment1", "A.pdf", nil)
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
