// Package main is the entry point for the junction gateway.
//
// The gateway bridges browser WebSocket clients to HTTP automation
// backends: an n8n-style workflow engine and a capability host, plus
// local capability providers that run in-process.
//
//	Browser (WebSocket) → Gateway → Workflow Engine (HTTP)
//	                              → Capability Host (HTTP)
//	External webhooks   → Gateway → broadcast to connected clients
//
// The server provides:
//   - WebSocket message dispatch (ping, workflow_trigger, capability_call, broadcast)
//   - HTTP trigger and webhook ingestion endpoints
//   - Local capability providers (introspection, webpage, transform)
//   - Cron scheduling from the workflow catalog
//   - Rate limiting and Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor), optionally from a .env file
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8400 -catalog catalog.yml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: graceful drain and shutdown
package main
