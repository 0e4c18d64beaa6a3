package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

const defaultEvalTimeout = 2 * time.Second

// Provider runs client-supplied JavaScript against payload data inside
// a sandboxed interpreter. Scripts see a single "input" global and a
// console; host access is stripped before anything runs.
type Provider struct {
	timeout time.Duration
}

// NewProvider creates the transform provider.
func NewProvider() *Provider {
	return &Provider{timeout: defaultEvalTimeout}
}

// Definition returns the transform service definition.
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "transform",
		Name:        "Transform Service",
		Description: "Reshape payloads with sandboxed JavaScript or path extraction",
		Category:    types.CategoryTransform,
		Capabilities: []string{
			"javascript_eval",
			"sandboxed_execution",
			"path_extraction",
		},
		Methods: []types.Method{
			{
				ID:          "transform.eval",
				Name:        "Evaluate Script",
				Description: "Run a JavaScript expression against the input value",
				Parameters: []types.Parameter{
					{Name: "script", Type: "string", Description: "JavaScript source; the last expression is the result", Required: true},
					{Name: "input", Type: "any", Description: "Value exposed to the script as the input global", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "transform.pick",
				Name:        "Pick Path",
				Description: "Extract a dot-separated path from the input value",
				Parameters: []types.Parameter{
					{Name: "input", Type: "any", Description: "Object or array to walk", Required: true},
					{Name: "path", Type: "string", Description: "Dot-separated path, numeric segments index arrays", Required: true},
				},
				Returns: "object",
			},
		},
	}
}

// Execute routes a method to its implementation.
func (p *Provider) Execute(ctx context.Context, methodID string, params map[string]interface{}, call *types.CallContext) (*types.Result, error) {
	switch methodID {
	case "transform.eval":
		return p.eval(ctx, params)
	case "transform.pick":
		return p.pick(params)
	default:
		return types.Failure(fmt.Sprintf("unknown method: %s", methodID)), nil
	}
}

func (p *Provider) eval(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	script, ok := params["script"].(string)
	if !ok || script == "" {
		return types.Failure("script parameter required"), nil
	}

	res, err := runScript(ctx, script, params["input"], p.timeout)
	if err != nil {
		return types.Failure(fmt.Sprintf("eval failed: %v", err)), nil
	}

	return types.Success(map[string]interface{}{
		"value":   res.value,
		"console": res.console,
	}), nil
}

func (p *Provider) pick(params map[string]interface{}) (*types.Result, error) {
	input, ok := params["input"]
	if !ok || input == nil {
		return types.Failure("input parameter required"), nil
	}
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return types.Failure("path parameter required"), nil
	}

	value, found := walkPath(input, path)
	if !found {
		return types.Failure(fmt.Sprintf("path not found: %s", path)), nil
	}

	return types.Success(map[string]interface{}{
		"value": value,
	}), nil
}
