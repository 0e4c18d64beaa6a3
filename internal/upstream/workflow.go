package upstream

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
)

// Resolver maps a workflow reference to an engine-relative path.
// Satisfied by the workflow catalog; a nil resolver falls back to the
// engine's webhook convention.
type Resolver interface {
	Resolve(name string) (path string, ok bool)
}

// WorkflowHandler relays workflow_trigger messages to the workflow
// engine: one POST, payload forwarded verbatim, bounded timeout, no
// retry.
type WorkflowHandler struct {
	client   *Client
	resolver Resolver
}

// NewWorkflowHandler creates the workflow trigger handler.
func NewWorkflowHandler(client *Client, resolver Resolver) *WorkflowHandler {
	return &WorkflowHandler{client: client, resolver: resolver}
}

// Kind returns the handled message kind.
func (h *WorkflowHandler) Kind() protocol.Kind {
	return protocol.KindWorkflowTrigger
}

// Handle triggers the referenced workflow and replies with the
// engine's response verbatim.
func (h *WorkflowHandler) Handle(ctx context.Context, req *dispatch.Request) (*protocol.Envelope, error) {
	env := req.Env
	if env.Workflow == "" {
		return nil, errors.New("workflow reference required")
	}

	result, err := h.Trigger(ctx, env.Workflow, env.Payload)
	if err != nil {
		return nil, err
	}
	return protocol.NewResult(env.Kind, result, env.ID), nil
}

// Trigger fires one workflow run. The scheduler and the HTTP glue
// endpoint share this path, so every trigger carries the same timeout
// and no-retry semantics.
func (h *WorkflowHandler) Trigger(ctx context.Context, workflow string, payload json.RawMessage) (json.RawMessage, error) {
	path := "/webhook/" + workflow
	if h.resolver != nil {
		if resolved, ok := h.resolver.Resolve(workflow); ok {
			path = resolved
		}
	}

	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return h.client.post(ctx, TargetWorkflow, h.client.workflowURL+path, payload)
}
