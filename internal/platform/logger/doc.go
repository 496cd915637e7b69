// Package logger provides structured logging functionality for the application
// using Go's standard library log/slog package. Loggers travel through
// context.Context so that request and task scoped attributes follow the work.
package logger
