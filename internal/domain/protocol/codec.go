package protocol

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// Decode parses wire bytes into an envelope. Structural failures and
// a missing or non-string kind return MalformedMessageError. Unknown
// kinds pass decode untouched; rejecting them is dispatch's job, so
// the sender gets a typed UnknownKind reply instead of a parse error.
func Decode(data []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &MalformedMessageError{Reason: "empty message"}
	}

	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, &MalformedMessageError{Reason: "invalid json", Cause: err}
	}

	if env.Kind == "" {
		return nil, &MalformedMessageError{Reason: "missing kind"}
	}

	return &env, nil
}

// Encode serializes an envelope to wire bytes. Encoding is total:
// every envelope the dispatcher produces marshals, and the impossible
// failure degrades to a static error envelope rather than an error
// return nobody could deliver.
func Encode(env *Envelope) []byte {
	data, err := sonic.Marshal(env)
	if err != nil {
		return []byte(`{"kind":"error","code":"encode_failed"}`)
	}
	return data
}
