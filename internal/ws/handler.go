package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // browser origin policy lives in the CORS middleware
	},
}

// Handler upgrades HTTP requests to socket connections and runs their
// read loops. Writes go through the connection registry; reads stay on
// this handler's goroutine.
type Handler struct {
	registry   *conn.Registry
	dispatcher *dispatch.Dispatcher
	cfg        config.GatewayConfig
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	accepting  func() bool
}

// NewHandler creates a socket handler. accepting is consulted before
// each upgrade; nil means always accept.
func NewHandler(registry *conn.Registry, dispatcher *dispatch.Dispatcher, cfg config.GatewayConfig, logger *logging.Logger, metrics *monitoring.Metrics, accepting func() bool) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		accepting:  accepting,
	}
}

// HandleConnection upgrades the request and serves the connection until
// the peer disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	if h.accepting != nil && !h.accepting() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway is shutting down"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("socket upgrade failed", zap.Error(err))
		return
	}
	sock.SetReadLimit(h.cfg.MaxMessageBytes)

	var limiter *rate.Limiter
	if h.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.MessageBurst)
	}

	cn := h.registry.Register(sock, c.ClientIP(), limiter)
	h.metrics.IncConnections()
	defer func() {
		h.registry.Unregister(cn.ID())
		h.metrics.DecConnections()
	}()

	if err := h.sendDirect(cn, protocol.NewWelcome("connected to junction gateway")); err != nil {
		h.logger.Warn("welcome send failed", zap.String("conn_id", cn.ID().String()), zap.Error(err))
		return
	}

	h.readLoop(cn, sock)
}

// readLoop consumes frames until the connection errors or closes.
// Messages dispatch in arrival order; reply order is up to the
// dispatcher.
func (h *Handler) readLoop(cn *conn.Conn, sock *websocket.Conn) {
	log := h.logger.WithConn(cn.ID().String())

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("connection closed unexpectedly", zap.Error(err))
			} else {
				log.Debug("connection closed", zap.Error(err))
			}
			return
		}

		if !cn.Allow() {
			h.metrics.RecordFailure("rate_limited")
			log.Warn("message rate exceeded")
			h.sendIgnoreError(cn, protocol.NewProtocolError("rate_limited", "message rate exceeded"))
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			h.metrics.RecordFailure(protocol.CodeMalformedMessage)
			log.Warn("malformed message", zap.Error(err))
			h.sendIgnoreError(cn, protocol.NewProtocolError(protocol.CodeMalformedMessage, err.Error()))
			continue
		}

		h.metrics.RecordMessage(monitoring.DirectionInbound, string(env.Kind))
		h.dispatcher.Handle(cn.ID(), env)
	}
}

func (h *Handler) sendDirect(cn *conn.Conn, env *protocol.Envelope) error {
	if err := cn.Send(env); err != nil {
		return err
	}
	h.metrics.RecordMessage(monitoring.DirectionOutbound, string(env.Kind))
	return nil
}

// sendIgnoreError sends a protocol-level reply. A failed send means the
// peer is gone; the next read surfaces that.
func (h *Handler) sendIgnoreError(cn *conn.Conn, env *protocol.Envelope) {
	if err := h.sendDirect(cn, env); err != nil {
		h.logger.Debug("protocol error send failed", zap.String("conn_id", cn.ID().String()), zap.Error(err))
	}
}
