package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/tracing"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
	"go.uber.org/zap"
)

// Mode selects where a handler runs.
type Mode int

const (
	// Sync runs the handler inline on the read-loop goroutine. Only
	// for handlers that never suspend, like ping.
	Sync Mode = iota
	// Async runs the handler on a tracked goroutine so external calls
	// never block the connection's read loop.
	Async
)

// Request is one inbound envelope bound to its originating connection.
type Request struct {
	ConnID    id.ConnID
	RequestID id.RequestID
	Env       *protocol.Envelope
}

// Handler is logic bound to one message kind. A nil reply with a nil
// error means the kind produces no direct response (broadcast).
type Handler interface {
	Kind() protocol.Kind
	Handle(ctx context.Context, req *Request) (*protocol.Envelope, error)
}

// Registration binds a handler to its execution mode. The set of
// registrations is fixed at startup; extending the protocol means
// adding a handler here, never runtime configuration.
type Registration struct {
	Handler Handler
	Mode    Mode
}

// Sender delivers reply envelopes to connections. Satisfied by
// conn.Registry.
type Sender interface {
	Send(cid id.ConnID, env *protocol.Envelope) error
}

type registration struct {
	handler Handler
	mode    Mode
}

// Dispatcher routes inbound envelopes to handlers and replies to the
// originating connection. The handler table is immutable after New;
// per-message failures are recovered here and never close the
// connection or leak into another connection's processing.
type Dispatcher struct {
	table   map[protocol.Kind]registration
	sender  Sender
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	wg sync.WaitGroup
}

// New builds a dispatcher over an immutable registration table.
// Duplicate kinds and nil handlers are wiring bugs and fail startup.
func New(sender Sender, logger *logging.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer, regs []Registration) (*Dispatcher, error) {
	table := make(map[protocol.Kind]registration, len(regs))
	for _, reg := range regs {
		if reg.Handler == nil {
			return nil, fmt.Errorf("nil handler in registration table")
		}
		kind := reg.Handler.Kind()
		if _, dup := table[kind]; dup {
			return nil, fmt.Errorf("duplicate handler for kind %q", kind)
		}
		table[kind] = registration{handler: reg.Handler, mode: reg.Mode}
	}

	return &Dispatcher{
		table:   table,
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// Kinds returns the registered kinds, sorted.
func (d *Dispatcher) Kinds() []string {
	kinds := make([]string, 0, len(d.table))
	for k := range d.table {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// Handle dispatches one decoded envelope from connID. Unknown kinds
// get exactly one error envelope back and nothing runs. Sync handlers
// run inline; async handlers run on a tracked goroutine, so the next
// inbound message is read without waiting, and responses of distinct
// in-flight dispatches may interleave.
func (d *Dispatcher) Handle(connID id.ConnID, env *protocol.Envelope) {
	reg, ok := d.table[env.Kind]
	if !ok {
		d.rejectUnknown(connID, env)
		return
	}

	req := &Request{
		ConnID:    connID,
		RequestID: id.NewRequestID(),
		Env:       env,
	}

	if reg.mode == Sync {
		d.run(reg.handler, req)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(reg.handler, req)
	}()
}

func (d *Dispatcher) rejectUnknown(connID id.ConnID, env *protocol.Envelope) {
	kindErr := &protocol.UnknownKindError{Kind: env.Kind}
	d.metrics.RecordFailure(protocol.CodeUnknownKind)
	d.logger.Warn("unknown message kind",
		zap.String("conn_id", string(connID)),
		zap.String("kind", string(env.Kind)))

	reply := protocol.NewProtocolError(protocol.CodeUnknownKind, kindErr.Error())
	reply.ID = env.ID
	d.deliver(connID, reply)
}

// run executes one dispatch end to end. The context is detached from
// the connection: a disconnect does not cancel an in-flight call, the
// eventual reply just fails to send and is discarded.
func (d *Dispatcher) run(handler Handler, req *Request) {
	ctx := context.Background()

	var span *tracing.Span
	if d.tracer != nil {
		span, ctx = d.tracer.StartSpan(ctx, "dispatch."+string(req.Env.Kind))
		span.SetTag("conn_id", string(req.ConnID))
		span.SetTag("request_id", string(req.RequestID))
	}

	start := time.Now()
	reply, err := handler.Handle(ctx, req)
	d.metrics.RecordDispatch(string(req.Env.Kind), time.Since(start))

	if err != nil {
		d.metrics.RecordFailure(protocol.CodeFor(err))
		d.logger.Warn("dispatch failed",
			zap.String("conn_id", string(req.ConnID)),
			zap.String("kind", string(req.Env.Kind)),
			zap.String("request_id", string(req.RequestID)),
			zap.Error(err))
		reply = protocol.NewKindError(req.Env.Kind, err, req.Env.ID)
	}

	if span != nil {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		d.tracer.Submit(span)
	}

	if reply == nil {
		return
	}
	d.deliver(req.ConnID, reply)
}

// deliver writes a reply. A failed delivery has no reachable sender
// left to inform; it is logged and counted, nothing more.
func (d *Dispatcher) deliver(connID id.ConnID, env *protocol.Envelope) {
	if err := d.sender.Send(connID, env); err != nil {
		d.metrics.RecordSendFailure()
		d.metrics.RecordFailure(protocol.CodeSendFailed)
		d.logger.Error("failed to deliver reply",
			zap.String("conn_id", string(connID)),
			zap.String("kind", string(env.Kind)),
			zap.Error(err))
		return
	}
	d.metrics.RecordMessage(monitoring.DirectionOutbound, string(env.Kind))
}

// Drain waits up to timeout for in-flight async dispatches to finish.
// Returns false when the timeout elapsed first.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
