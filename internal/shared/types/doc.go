// Package types provides shared data structures for the gateway.
//
// This package defines the capability service vocabulary used across the
// provider registry, the built-in providers, and the HTTP service listing.
//
// Core Types:
//   - Service: Capability service definition
//   - Method: Callable method specification
//   - Parameter: Method parameter specification
//   - CallContext: Origin of a capability call (connection, request)
//   - Result: Standard method execution result
//
// Example Usage:
//
//	result := types.Success(map[string]interface{}{
//	    "connections": 4,
//	})
package types
