package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/service"
	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

// Provider exposes the gateway's own runtime state as a capability
// service, so connected clients can inspect the process they are
// talking to without a separate admin surface.
type Provider struct {
	conns    *conn.Registry
	services *service.Registry
	metrics  *monitoring.Metrics
}

// NewProvider creates the introspection provider.
func NewProvider(conns *conn.Registry, services *service.Registry, metrics *monitoring.Metrics) *Provider {
	return &Provider{
		conns:    conns,
		services: services,
		metrics:  metrics,
	}
}

// Definition returns the introspection service definition.
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:           "gateway",
		Name:         "Gateway Introspection",
		Description:  "Runtime statistics and connection state of the gateway itself",
		Category:     types.CategoryIntrospection,
		Capabilities: []string{"stats", "connections", "services"},
		Methods: []types.Method{
			{
				ID:          "gateway.stats",
				Name:        "Gateway Stats",
				Description: "Message counters, dispatch latency quantiles, and uptime",
				Returns:     "object",
			},
			{
				ID:          "gateway.connections",
				Name:        "List Connections",
				Description: "Currently registered socket connections",
				Returns:     "object",
			},
			{
				ID:          "gateway.services",
				Name:        "List Services",
				Description: "Capability services that resolve locally, without the remote host",
				Parameters: []types.Parameter{
					{Name: "category", Type: "string", Description: "Filter by service category", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute routes a method to its implementation.
func (p *Provider) Execute(ctx context.Context, methodID string, params map[string]interface{}, call *types.CallContext) (*types.Result, error) {
	switch methodID {
	case "gateway.stats":
		return p.stats()
	case "gateway.connections":
		return p.connections()
	case "gateway.services":
		return p.listServices(params)
	default:
		return types.Failure(fmt.Sprintf("unknown method: %s", methodID)), nil
	}
}

func (p *Provider) stats() (*types.Result, error) {
	snap := p.metrics.GetSnapshot()
	lat := p.metrics.DispatchQuantiles()

	return types.Success(map[string]interface{}{
		"uptime_seconds":     p.metrics.UptimeDuration().Seconds(),
		"active_connections": snap.ActiveConnections,
		"requests":           snap.TotalRequests,
		"errors":             snap.TotalErrors,
		"messages": map[string]interface{}{
			"in":            snap.MessagesIn,
			"out":           snap.MessagesOut,
			"send_failures": snap.SendFailures,
		},
		"dispatch_latency": map[string]interface{}{
			"count": lat.Count,
			"p50":   lat.P50,
			"p90":   lat.P90,
			"p99":   lat.P99,
		},
	}), nil
}

func (p *Provider) connections() (*types.Result, error) {
	now := time.Now()
	snapshot := p.conns.Snapshot()

	list := make([]map[string]interface{}, 0, len(snapshot))
	for _, cn := range snapshot {
		list = append(list, map[string]interface{}{
			"id":           cn.ID().String(),
			"remote":       cn.Remote(),
			"connected_at": cn.Created().UTC().Format(time.RFC3339),
			"age_seconds":  now.Sub(cn.Created()).Seconds(),
		})
	}

	return types.Success(map[string]interface{}{
		"connections": list,
		"count":       len(list),
	}), nil
}

func (p *Provider) listServices(params map[string]interface{}) (*types.Result, error) {
	var filter *types.Category
	if raw, ok := params["category"].(string); ok && raw != "" {
		cat := types.Category(raw)
		switch cat {
		case types.CategoryIntrospection, types.CategoryWeb, types.CategoryTransform, types.CategoryRemote:
			filter = &cat
		default:
			return types.Failure(fmt.Sprintf("unknown category: %s", raw)), nil
		}
	}

	defs := p.services.List(filter)
	services := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		services = append(services, map[string]interface{}{
			"id":       def.ID,
			"name":     def.Name,
			"category": string(def.Category),
			"methods":  len(def.Methods),
		})
	}

	return types.Success(map[string]interface{}{
		"services": services,
		"registry": p.services.Stats(),
	}), nil
}
