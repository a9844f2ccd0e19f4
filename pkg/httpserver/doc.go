// Package httpserver wraps net/http's server with graceful shutdown on
// SIGINT/SIGTERM or context cancellation, functional-option
// configuration and health probe handlers.
package httpserver
