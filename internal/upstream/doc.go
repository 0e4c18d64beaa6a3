/*
Package upstream implements the external call handlers.

Each handler performs exactly one outbound call per invocation:
workflow_trigger POSTs the payload verbatim to the workflow engine,
capability_call resolves its service against the local provider
registry and otherwise forwards verbatim to the capability host.

Every call is bounded by the configured per-call timeout and is never
retried; workflow triggers are not idempotent-safe, so retry policy
belongs to the caller. A breaker per target turns a dead engine into
fast failures instead of queued timeouts. All failures surface as
protocol.UpstreamError with a client-facing detail.
*/
package upstream
