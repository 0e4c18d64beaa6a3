/*
Package protocol defines the wire contract of the gateway.

# Envelope

Every message is a flat JSON envelope tagged with a kind:

	{"kind": "workflow_trigger", "workflow": "abc", "payload": {"x": 1}, "id": "req_..."}

Inbound kinds form a closed set (ping, workflow_trigger,
capability_call, broadcast). Replies reuse the request kind with a
_result or _error suffix and echo the correlation ID when present:

	{"kind": "workflow_trigger_result", "result": {"ok": true}, "id": "req_..."}
	{"kind": "capability_call_error", "error": "...", "id": "req_..."}

Payload, Params and Result are json.RawMessage so the gateway forwards
them verbatim without reinterpreting upstream shapes.

# Codec

Decode validates structure and the presence of a string kind, nothing
more; unknown kinds are dispatch's concern. Encode is total for every
envelope the dispatcher produces.

# Error taxonomy

MalformedMessageError, UnknownKindError, UpstreamError, SendFailedError
and BindError carry the gateway's failure vocabulary. Only BindError is
fatal. Callers classify with errors.As; CodeFor maps any error to the
code reported in envelopes and metrics.
*/
package protocol
