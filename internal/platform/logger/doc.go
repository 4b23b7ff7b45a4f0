// Package logger provides structured logging for the service.
//
// It builds JSON slog loggers from configuration and carries request-scoped
// loggers through context.Context, so that handlers, services and stores log
// with the same correlation attributes (trace_id, identity_id).
package logger
