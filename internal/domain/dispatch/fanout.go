package dispatch

import (
	"context"

	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
	"go.uber.org/zap"
)

// Fanout relays broadcast payloads to every connection except the
// sender. Delivery is best-effort over an immutable snapshot: one
// dead peer never aborts the rest, and the sender gets no ack beyond
// "accepted for fan-out".
type Fanout struct {
	registry *conn.Registry
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewFanout creates the broadcast handler over the connection registry.
func NewFanout(registry *conn.Registry, logger *logging.Logger, metrics *monitoring.Metrics) *Fanout {
	return &Fanout{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// Kind returns the handled message kind.
func (f *Fanout) Kind() protocol.Kind {
	return protocol.KindBroadcast
}

// Handle relays the payload to the sender's peers. The sender label
// defaults to the connection identity when the envelope names none.
// No reply envelope is produced.
func (f *Fanout) Handle(_ context.Context, req *Request) (*protocol.Envelope, error) {
	from := req.Env.From
	if from == "" {
		from = string(req.ConnID)
	}

	env := protocol.NewBroadcast(req.Env.Payload, from)
	f.Deliver(req.ConnID, env)
	return nil, nil
}

// Deliver writes env to every connection except sender and returns
// the number of successful deliveries. The snapshot is taken once; a
// peer that closes mid-iteration fails its own send and nothing else.
func (f *Fanout) Deliver(sender id.ConnID, env *protocol.Envelope) int {
	peers := f.registry.SnapshotExcept(sender)

	delivered := 0
	for _, peer := range peers {
		if err := peer.Send(env); err != nil {
			f.metrics.RecordSendFailure()
			f.logger.Warn("broadcast delivery failed",
				zap.String("conn_id", string(peer.ID())),
				zap.String("from", env.From),
				zap.Error(err))
			continue
		}
		delivered++
		f.metrics.RecordMessage(monitoring.DirectionOutbound, string(protocol.KindBroadcast))
	}

	f.metrics.RecordBroadcast(delivered)
	f.logger.Debug("broadcast fanned out",
		zap.String("from", env.From),
		zap.Int("peers", len(peers)),
		zap.Int("delivered", delivered))

	return delivered
}
