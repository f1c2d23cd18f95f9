// Package server holds what the MCP server shares between tool handlers: the
// Gmail session, the commit matcher and the instrumentation hooks.
//
// It also runs an optional HTTP listener for Prometheus scraping with
// liveness and readiness endpoints next to /metrics.
package server
