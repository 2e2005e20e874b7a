// Package server provides the state shared by the MCP handlers and the
// optional HTTP side channel for metrics and health probes.
//
// # Key Components
//
// ServerContext owns the configuration, the token provider and a bounded
// LRU cache of per-account Gmail clients. Clients are created on first use
// of an account and evicted least-recently-used first; every client gets its
// own Invoker so rate limits and circuit breakers are per account.
//
// MetricsServer exposes /metrics (Prometheus) and, with a HealthChecker,
// /healthz, /readyz and /healthz/detailed. Readiness fails while the token
// store cannot be read.
package server
