/*
Package monitoring provides Prometheus metrics collection for the gateway.

# Overview

This package tracks the gateway's operational surface: WebSocket
connections and message flow, dispatch latency, upstream call outcomes,
broadcast fan-out, and glue endpoint traffic. All collectors carry the
gateway_ prefix.

# Usage

	// Create a metrics collector on the default registry
	metrics := monitoring.New()

	// Add middleware to the Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record gateway events
	metrics.IncConnections()
	metrics.RecordMessage(monitoring.DirectionInbound, "ping")
	metrics.RecordDispatch("workflow_trigger", elapsed)

	// Time upstream calls
	timer := monitoring.NewTimer(metrics, "workflow")
	// ... perform call ...
	timer.Stop("success")

Dispatch latency is additionally kept in a bounded sliding window so
the stats API can report recent p50/p90/p99 without scraping Prometheus:

	q := metrics.DispatchQuantiles()

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
