package protocol

import (
	"encoding/json"
	"time"
)

// Kind tags an envelope with its message type.
type Kind string

// Inbound kinds form a closed set. Extending it means adding a handler
// and a registration at startup, never runtime configuration.
const (
	KindPing            Kind = "ping"
	KindWorkflowTrigger Kind = "workflow_trigger"
	KindCapabilityCall  Kind = "capability_call"
	KindBroadcast       Kind = "broadcast"
)

// Outbound-only kinds.
const (
	KindConnected Kind = "connected"
	KindPong      Kind = "pong"
	KindError     Kind = "error"
	KindShutdown  Kind = "shutdown"
)

// ResultKind returns the reply kind for a successful dispatch.
func (k Kind) ResultKind() Kind {
	return Kind(string(k) + "_result")
}

// ErrorKind returns the reply kind for a failed dispatch.
func (k Kind) ErrorKind() Kind {
	return Kind(string(k) + "_error")
}

func (k Kind) String() string {
	return string(k)
}

// Envelope is the wire-level unit exchanged over a connection. The
// shape is a flat union: which fields are meaningful depends on Kind.
// Payload, Params and Result stay raw so they are forwarded verbatim.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	From      string          `json:"from,omitempty"`
	Workflow  string          `json:"workflow,omitempty"`
	Service   string          `json:"service,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NewWelcome builds the envelope sent immediately after accept.
func NewWelcome(message string) *Envelope {
	return &Envelope{
		Kind:      KindConnected,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewPong builds the synchronous reply to a ping.
func NewPong() *Envelope {
	return &Envelope{
		Kind:      KindPong,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewResult builds the <kind>_result reply for a successful dispatch,
// echoing the correlation ID when the request carried one.
func NewResult(orig Kind, result json.RawMessage, correlationID string) *Envelope {
	return &Envelope{
		Kind:   orig.ResultKind(),
		ID:     correlationID,
		Result: result,
	}
}

// NewKindError builds the <kind>_error reply for a failed dispatch.
func NewKindError(orig Kind, err error, correlationID string) *Envelope {
	return &Envelope{
		Kind:  orig.ErrorKind(),
		ID:    correlationID,
		Error: err.Error(),
	}
}

// NewProtocolError builds the generic error envelope used when no
// request kind exists to reply under (malformed input, unknown kind).
func NewProtocolError(code, detail string) *Envelope {
	return &Envelope{
		Kind:      KindError,
		Code:      code,
		Error:     detail,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewBroadcast builds the envelope fanned out to peer connections.
func NewBroadcast(payload json.RawMessage, from string) *Envelope {
	return &Envelope{
		Kind:    KindBroadcast,
		Payload: payload,
		From:    from,
	}
}

// NewShutdown builds the close notification sent during drain.
func NewShutdown(message string) *Envelope {
	return &Envelope{
		Kind:      KindShutdown,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}
