package conn

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
	"golang.org/x/time/rate"
)

// Socket is the transport write side of a connection. Production code
// passes a *websocket.Conn; tests pass fakes.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn represents one accepted socket connection. Its identity is
// unique for the process lifetime and never reused. Membership in the
// registry is the registry's to mutate, not the connection's.
type Conn struct {
	id      id.ConnID
	remote  string
	created time.Time
	limiter *rate.Limiter

	mu           sync.Mutex
	sock         Socket
	writeTimeout time.Duration
	closed       bool
}

func newConn(sock Socket, remote string, limiter *rate.Limiter, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           id.NewConnID(),
		remote:       remote,
		created:      time.Now(),
		limiter:      limiter,
		sock:         sock,
		writeTimeout: writeTimeout,
	}
}

// ID returns the connection's opaque identity.
func (c *Conn) ID() id.ConnID {
	return c.id
}

// Remote returns the remote address the connection was accepted from.
func (c *Conn) Remote() string {
	return c.remote
}

// Created returns when the connection was accepted.
func (c *Conn) Created() time.Time {
	return c.created
}

// Allow reports whether the inbound rate limit admits another message.
// Connections without a limiter always admit.
func (c *Conn) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Send encodes and writes an envelope. Writes are serialized; the
// websocket transport permits one concurrent writer. A closed
// connection or a rejected write returns SendFailedError.
func (c *Conn) Send(env *protocol.Envelope) error {
	data := protocol.Encode(env)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &protocol.SendFailedError{ConnID: c.id}
	}

	if c.writeTimeout > 0 {
		if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return &protocol.SendFailedError{ConnID: c.id, Cause: err}
		}
	}

	if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
		return &protocol.SendFailedError{ConnID: c.id, Cause: err}
	}
	return nil
}

// Close closes the underlying socket. Safe to call more than once;
// later sends fail with SendFailedError.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
