// Package logger builds configured slog.Logger instances: JSON for
// production log aggregation, text for development, with service-wide
// static attributes applied once at construction.
package logger
