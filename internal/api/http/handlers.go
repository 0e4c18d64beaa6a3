package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/junctionhq/junction/gateway/internal/domain/catalog"
	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/domain/schedule"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/service"
	"github.com/junctionhq/junction/gateway/internal/shared/types"
	"github.com/junctionhq/junction/gateway/internal/upstream"
)

// Handlers contains the gateway's HTTP handlers.
type Handlers struct {
	conns     *conn.Registry
	services  *service.Registry
	client    *upstream.Client
	workflow  *upstream.WorkflowHandler
	fanout    *dispatch.Fanout
	catalog   *catalog.Catalog
	scheduler *schedule.Scheduler
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	accepting func() bool
}

// NewHandlers creates the handler set.
func NewHandlers(
	conns *conn.Registry,
	services *service.Registry,
	client *upstream.Client,
	workflow *upstream.WorkflowHandler,
	fanout *dispatch.Fanout,
	cat *catalog.Catalog,
	scheduler *schedule.Scheduler,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
	accepting func() bool,
) *Handlers {
	return &Handlers{
		conns:     conns,
		services:  services,
		client:    client,
		workflow:  workflow,
		fanout:    fanout,
		catalog:   cat,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger,
		accepting: accepting,
	}
}

// Root handles the basic liveness probe.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "junction-gateway",
		"version": "1.0.0",
	})
}

// Health reports whether the gateway accepts new connections. Load
// balancers poll this; a draining gateway answers 503 so they route
// new clients elsewhere while existing connections finish.
func (h *Handlers) Health(c *gin.Context) {
	accepting := h.accepting == nil || h.accepting()

	status := "healthy"
	code := http.StatusOK
	if !accepting {
		status = "draining"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":         status,
		"accepting":      accepting,
		"connections":    h.conns.Count(),
		"uptime_seconds": h.metrics.UptimeDuration().Seconds(),
		"upstreams":      h.client.BreakerStates(),
	})
}

// StatsSummary provides high-level gateway counters.
type StatsSummary struct {
	ActiveConnections int64   `json:"active_connections"`
	TotalRequests     int64   `json:"total_requests"`
	ErrorRate         float64 `json:"error_rate"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// StatsResponse is the full introspection snapshot served by /stats.
type StatsResponse struct {
	Timestamp time.Time                   `json:"timestamp"`
	Summary   StatsSummary                `json:"summary"`
	Messages  map[string]int64            `json:"messages"`
	Dispatch  monitoring.LatencyQuantiles `json:"dispatch_latency"`
	Upstreams map[string]string           `json:"upstreams"`
	Services  map[string]interface{}      `json:"services"`
	Workflows map[string]int              `json:"workflows"`
}

// Stats serves the aggregated gateway snapshot.
func (h *Handlers) Stats(c *gin.Context) {
	snapshot := h.metrics.GetSnapshot()

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	c.JSON(http.StatusOK, StatsResponse{
		Timestamp: time.Now(),
		Summary: StatsSummary{
			ActiveConnections: int64(h.conns.Count()),
			TotalRequests:     snapshot.TotalRequests,
			ErrorRate:         errorRate,
			UptimeSeconds:     h.metrics.UptimeDuration().Seconds(),
		},
		Messages: map[string]int64{
			"in":            snapshot.MessagesIn,
			"out":           snapshot.MessagesOut,
			"send_failures": snapshot.SendFailures,
		},
		Dispatch:  h.metrics.DispatchQuantiles(),
		Upstreams: h.client.BreakerStates(),
		Services:  h.services.Stats(),
		Workflows: map[string]int{
			"catalog_entries": h.catalog.Len(),
			"schedules":       h.scheduler.Entries(),
		},
	})
}

// ListServices lists capability service definitions, optionally
// filtered by category.
func (h *Handlers) ListServices(c *gin.Context) {
	categoryStr := c.Query("category")

	var category *types.Category
	if categoryStr != "" {
		cat := types.Category(categoryStr)
		if !validCategory(cat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + categoryStr})
			return
		}
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.services.List(category),
		"stats":    h.services.Stats(),
	})
}

// TriggerWorkflow fires a workflow over plain HTTP. Shares the socket
// path's handler, so timeouts and the no-retry rule apply here too.
func (h *Handlers) TriggerWorkflow(c *gin.Context) {
	name := c.Param("workflow")

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > 0 && !sonic.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be valid JSON"})
		return
	}

	result, err := h.workflow.Trigger(c.Request.Context(), name, body)
	if err != nil {
		var upstreamErr *protocol.UpstreamError
		if errors.As(err, &upstreamErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": upstreamErr.Error(),
				"code":  protocol.CodeUpstreamError,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workflow": name,
		"result":   json.RawMessage(result),
	})
}

func validCategory(c types.Category) bool {
	switch c {
	case types.CategoryIntrospection, types.CategoryWeb, types.CategoryTransform, types.CategoryRemote:
		return true
	}
	return false
}
