package protocol

import (
	"errors"
	"fmt"

	"github.com/junctionhq/junction/gateway/internal/shared/id"
)

// Taxonomy codes carried in generic error envelopes and metrics labels.
const (
	CodeMalformedMessage = "malformed_message"
	CodeUnknownKind      = "unknown_kind"
	CodeUpstreamError    = "upstream_error"
	CodeSendFailed       = "send_failed"
	CodeBindError        = "bind_error"
	CodeInternal         = "internal_error"
)

// MalformedMessageError reports input that cannot be decoded. The
// connection stays open; the sender receives a generic error envelope.
type MalformedMessageError struct {
	Reason string
	Cause  error
}

func (e *MalformedMessageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Cause)
	}
	return "malformed message: " + e.Reason
}

func (e *MalformedMessageError) Unwrap() error { return e.Cause }

// UnknownKindError reports a decoded envelope whose kind no handler
// is registered for.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}

// UpstreamError reports a failed or timed-out external call. The
// detail is what the originating connection sees in its error reply;
// the call is never retried.
type UpstreamError struct {
	Target string
	Detail string
	Cause  error
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "upstream call failed"
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// SendFailedError reports a write to a connection that is gone or
// whose transport rejected the write. Logged only; there is no longer
// a reachable sender to surface it to.
type SendFailedError struct {
	ConnID id.ConnID
	Cause  error
}

func (e *SendFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("send to %s failed: %v", e.ConnID, e.Cause)
	}
	return fmt.Sprintf("send to %s failed: connection gone", e.ConnID)
}

func (e *SendFailedError) Unwrap() error { return e.Cause }

// BindError reports startup failing to acquire the listening endpoint.
// It is the only fatal error in the taxonomy.
type BindError struct {
	Addr  string
	Cause error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Cause)
}

func (e *BindError) Unwrap() error { return e.Cause }

// CodeFor maps an error to its taxonomy code.
func CodeFor(err error) string {
	var (
		malformed *MalformedMessageError
		unknown   *UnknownKindError
		upstream  *UpstreamError
		send      *SendFailedError
		bind      *BindError
	)
	switch {
	case errors.As(err, &malformed):
		return CodeMalformedMessage
	case errors.As(err, &unknown):
		return CodeUnknownKind
	case errors.As(err, &upstream):
		return CodeUpstreamError
	case errors.As(err, &send):
		return CodeSendFailed
	case errors.As(err, &bind):
		return CodeBindError
	default:
		return CodeInternal
	}
}

// IsSendFailed reports whether err is a delivery failure.
func IsSendFailed(err error) bool {
	var send *SendFailedError
	return errors.As(err, &send)
}
