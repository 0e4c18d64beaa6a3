package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/service"
	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

// CapabilityHandler resolves capability_call messages. A service that
// exists in the local provider registry executes in-process; anything
// else is forwarded verbatim to the capability host.
type CapabilityHandler struct {
	client   *Client
	services *service.Registry
}

// NewCapabilityHandler creates the capability call handler.
func NewCapabilityHandler(client *Client, services *service.Registry) *CapabilityHandler {
	return &CapabilityHandler{client: client, services: services}
}

// Kind returns the handled message kind.
func (h *CapabilityHandler) Kind() protocol.Kind {
	return protocol.KindCapabilityCall
}

// capabilityResult wraps the provider response verbatim with the
// processed marker and timestamp the reply contract requires.
type capabilityResult struct {
	Data      json.RawMessage `json:"data"`
	Processed bool            `json:"processed"`
	Timestamp int64           `json:"timestamp"`
}

// remoteCall is the body forwarded to the capability host.
type remoteCall struct {
	Service string          `json:"service"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Handle executes the named capability and replies with its response
// plus the processed marker.
func (h *CapabilityHandler) Handle(ctx context.Context, req *dispatch.Request) (*protocol.Envelope, error) {
	env := req.Env
	if env.Service == "" || env.Method == "" {
		return nil, errors.New("service and method required")
	}

	call := &types.CallContext{
		ConnID:    string(req.ConnID),
		RequestID: string(req.RequestID),
	}
	data, err := h.Call(ctx, env.Service, env.Method, env.Params, call)
	if err != nil {
		return nil, err
	}

	raw, err := sonic.Marshal(capabilityResult{
		Data:      data,
		Processed: true,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode capability result: %w", err)
	}
	return protocol.NewResult(env.Kind, raw, env.ID), nil
}

// Call resolves the service locally first, then against the remote
// capability host.
func (h *CapabilityHandler) Call(ctx context.Context, svc, method string, params json.RawMessage, call *types.CallContext) (json.RawMessage, error) {
	if h.services != nil && h.services.Has(svc) {
		return h.callLocal(ctx, svc, method, params, call)
	}
	return h.client.post(ctx, TargetCapability, h.client.capabilityURL+"/call", remoteCall{
		Service: svc,
		Method:  method,
		Params:  params,
	})
}

func (h *CapabilityHandler) callLocal(ctx context.Context, svc, method string, params json.RawMessage, call *types.CallContext) (json.RawMessage, error) {
	var paramsMap map[string]interface{}
	if len(params) > 0 {
		if err := sonic.Unmarshal(params, &paramsMap); err != nil {
			return nil, fmt.Errorf("params must be an object: %w", err)
		}
	}

	// Local providers honor the same per-call bound as remote targets.
	callCtx, cancel := context.WithTimeout(ctx, h.client.timeout)
	defer cancel()

	result, err := h.services.Execute(callCtx, svc+"."+method, paramsMap, call)
	if err != nil {
		return nil, &protocol.UpstreamError{Target: svc, Detail: err.Error(), Cause: err}
	}
	if !result.Success {
		detail := "capability call failed"
		if result.Error != nil {
			detail = *result.Error
		}
		return nil, &protocol.UpstreamError{Target: svc, Detail: detail}
	}

	data, err := sonic.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("encode provider data: %w", err)
	}
	return data, nil
}
