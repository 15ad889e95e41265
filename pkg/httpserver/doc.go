// Package httpserver runs an http.Handler until its context is cancelled
// and then shuts down gracefully. Timeouts come from Config (env driven)
// or functional options; invalid option values panic at construction.
//
// Liveness and readiness handlers are provided for orchestration health checks.
package httpserver
