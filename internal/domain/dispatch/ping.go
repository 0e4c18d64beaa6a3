package dispatch

import (
	"context"

	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
)

// PingHandler answers a ping with a timestamped pong. It runs in Sync
// mode on the read-loop goroutine and never touches an external call
// path.
type PingHandler struct{}

// NewPingHandler creates the ping handler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// Kind returns the handled message kind.
func (h *PingHandler) Kind() protocol.Kind {
	return protocol.KindPing
}

// Handle replies with a pong, echoing the correlation ID when present.
func (h *PingHandler) Handle(_ context.Context, req *Request) (*protocol.Envelope, error) {
	pong := protocol.NewPong()
	pong.ID = req.Env.ID
	return pong, nil
}
