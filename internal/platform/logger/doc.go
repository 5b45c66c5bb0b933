// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, enriched with workflow metadata when the batch
// job runs under a CI scheduler.
package logger
