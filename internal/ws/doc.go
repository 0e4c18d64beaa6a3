// Package ws is the socket surface of the gateway.
//
// Each upgraded connection gets a registry entry, a welcome envelope,
// and a read loop on the upgrade goroutine. Frames decode into protocol
// envelopes and hand off to the dispatcher; anything that fails before
// dispatch (rate limit, malformed JSON) is answered with a protocol
// error envelope without tearing the connection down.
//
// Message kinds (client to gateway):
//   - ping: liveness check, answered inline
//   - workflow_trigger: fire a workflow on the engine
//   - capability_call: invoke a capability service method
//   - broadcast: relay a payload to all other connections
//
// Message kinds (gateway to client):
//   - connected: welcome on upgrade
//   - pong: ping reply
//   - <kind>_result / <kind>_error: per-request replies
//   - error: protocol-level failure
//   - shutdown: drain notice
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, dispatcher, cfg.Gateway, logger, metrics, server.Accepting)
//	router.GET("/stream", handler.HandleConnection)
package ws
