// Package service provides the local capability provider registry.
//
// A capability_call names a service and method. Before the gateway
// forwards the call to the remote capability host, it checks this
// registry for an in-process provider; built-in providers cover
// gateway introspection, webpage extraction and payload transforms.
//
// The registry is populated during startup wiring and read-only
// afterward. Method IDs are fully qualified, "service.method".
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(webpage.NewProvider())
//	result, err := registry.Execute(ctx, "webpage.fetch", params, call)
package service
