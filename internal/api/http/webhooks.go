package http

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
)

// ReceiveWebhook accepts an external event and relays it to every
// connection as a broadcast envelope. Delivery is best-effort; the
// response reports how many connections received it, and an empty
// gateway still answers 200 with zero deliveries.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	source := c.Param("source")

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !sonic.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be valid JSON"})
		return
	}

	eventID := id.NewEventID()
	env := protocol.NewBroadcast(body, "webhook/"+source)
	env.ID = eventID.String()

	delivered := h.fanout.Deliver("", env)
	h.metrics.RecordWebhookEvent(source)

	h.logger.Info("webhook event relayed",
		zap.String("source", source),
		zap.String("event_id", eventID.String()),
		zap.Int("delivered", delivered),
	)

	c.JSON(http.StatusOK, gin.H{
		"event_id":  eventID.String(),
		"source":    source,
		"delivered": delivered,
	})
}
