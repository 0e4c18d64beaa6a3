package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

// Provider is a local capability implementation. Providers resolve
// capability calls in-process before the gateway considers the remote
// capability host.
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, methodID string, params map[string]interface{}, call *types.CallContext) (*types.Result, error)
}

// Registry maps service IDs to providers. It is populated during
// startup wiring and read-only afterward; there is no runtime
// registration, matching the dispatcher's handler table.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider. Duplicate or empty service IDs are wiring
// bugs and fail loudly at startup.
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[def.ID]; exists {
		return fmt.Errorf("service %q already registered", def.ID)
	}
	r.providers[def.ID] = provider
	return nil
}

// Get retrieves a provider by service ID.
func (r *Registry) Get(serviceID string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[serviceID]
	return p, ok
}

// Has reports whether a service resolves locally.
func (r *Registry) Has(serviceID string) bool {
	_, ok := r.Get(serviceID)
	return ok
}

// List returns registered service definitions sorted by ID,
// optionally filtered by category.
func (r *Registry) List(category *types.Category) []types.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]types.Service, 0, len(r.providers))
	for _, p := range r.providers {
		def := p.Definition()
		if category == nil || def.Category == *category {
			services = append(services, def)
		}
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].ID < services[j].ID
	})
	return services
}

// Execute runs a method through its provider. methodID is fully
// qualified, "service.method".
func (r *Registry) Execute(ctx context.Context, methodID string, params map[string]interface{}, call *types.CallContext) (*types.Result, error) {
	parts := strings.SplitN(methodID, ".", 2)
	if len(parts) < 2 {
		return types.Failure("invalid method ID format"), fmt.Errorf("invalid method ID format: %s", methodID)
	}

	provider, ok := r.Get(parts[0])
	if !ok {
		return types.Failure(fmt.Sprintf("service not found: %s", parts[0])), fmt.Errorf("service not found: %s", parts[0])
	}

	return provider.Execute(ctx, methodID, params, call)
}

// Stats returns registry statistics for the introspection surface.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var totalMethods int
	categories := make(map[string]int)
	for _, p := range r.providers {
		def := p.Definition()
		totalMethods += len(def.Methods)
		categories[string(def.Category)]++
	}

	return map[string]interface{}{
		"total_services": len(r.providers),
		"total_methods":  totalMethods,
		"categories":     categories,
	}
}
