/*
Package tracing provides lightweight tracing for gateway traffic.

# Overview

A dispatched message can touch several hops: the WebSocket read loop,
a handler, an upstream engine, and a reply write. This package tracks
those hops as spans with parent-child relationships and emits them as
structured logs. It follows OpenTelemetry concepts with a minimal
implementation tailored to the gateway.

# Usage

	// Create tracer
	tracer := tracing.New("gateway", logger)

	// HTTP middleware for the glue endpoints
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation around a dispatch
	span, ctx := tracer.StartSpan(ctx, "dispatch.workflow_trigger")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("conn_id", string(connID))

# Trace Format

Traces use standard HTTP headers for propagation:
  - X-Trace-ID: unique identifier for the entire request flow
  - X-Span-ID: identifier for the current operation

The upstream client injects these into outbound calls so engine logs
can be correlated with gateway spans.

# Performance

Span collection is buffered (1000 spans) and asynchronous. A full
buffer drops spans instead of blocking dispatch.
*/
package tracing
