package conn

import (
	"sync"
	"time"

	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Registry is the single point of truth for live connections. One
// lock serializes registration, removal and snapshot iteration, so a
// fan-out never observes a connection mid-removal. It is an owned
// object constructed once at startup, not ambient state.
type Registry struct {
	mu    sync.RWMutex
	conns map[id.ConnID]*Conn

	writeTimeout time.Duration
	logger       *logging.Logger
}

// NewRegistry creates an empty registry. writeTimeout bounds each
// outbound write on every registered connection.
func NewRegistry(logger *logging.Logger, writeTimeout time.Duration) *Registry {
	return &Registry{
		conns:        make(map[id.ConnID]*Conn),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Register wraps an accepted socket in a Conn, assigns its identity
// and adds it to the registry. limiter may be nil for unthrottled
// connections.
func (r *Registry) Register(sock Socket, remote string, limiter *rate.Limiter) *Conn {
	c := newConn(sock, remote, limiter, r.writeTimeout)

	r.mu.Lock()
	r.conns[c.id] = c
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("connection registered",
		zap.String("conn_id", string(c.id)),
		zap.String("remote", remote),
		zap.Int("total", total))

	return c
}

// Unregister removes the connection and closes its socket. Unknown
// identities are a no-op, so close paths may race harmlessly.
func (r *Registry) Unregister(cid id.ConnID) {
	r.mu.Lock()
	c, ok := r.conns[cid]
	if ok {
		delete(r.conns, cid)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}

	_ = c.Close()
	r.logger.Info("connection unregistered",
		zap.String("conn_id", string(cid)),
		zap.Int("total", total))
}

// Get returns the connection for cid if it is still registered.
func (r *Registry) Get(cid id.ConnID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[cid]
	return c, ok
}

// Send delivers an envelope to one connection. A missing connection
// or a rejected write returns SendFailedError.
func (r *Registry) Send(cid id.ConnID, env *protocol.Envelope) error {
	c, ok := r.Get(cid)
	if !ok {
		return &protocol.SendFailedError{ConnID: cid}
	}
	return c.Send(env)
}

// Snapshot returns the current connections as an immutable copy.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// SnapshotExcept returns every connection but cid. Fan-out iterates
// the returned slice, not the live map, so concurrent removal cannot
// corrupt iteration.
func (r *Registry) SnapshotExcept(cid id.ConnID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for cc, c := range r.conns {
		if cc == cid {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// CloseAll force-closes every connection and empties the registry.
// Used at the end of drain; later sends to the old identities fail
// with SendFailedError.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.conns)
	for cid, c := range r.conns {
		_ = c.Close()
		r.logger.Debug("connection force closed", zap.String("conn_id", string(cid)))
	}
	r.conns = make(map[id.ConnID]*Conn)
	return n
}
