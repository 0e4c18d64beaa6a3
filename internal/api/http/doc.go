// Package http provides the gateway's HTTP surface.
//
// Routes:
//   - GET  /          basic liveness
//   - GET  /health    accepting state for load balancers
//   - GET  /stats     aggregated counters, latency quantiles, breaker states
//   - GET  /api/services            capability service definitions
//   - POST /n8n/trigger/:workflow   fire a workflow over HTTP
//   - POST /webhooks/:source        relay an external event to all connections
//
// The socket upgrade route and /metrics are registered by the server,
// which owns their dependencies.
package http
