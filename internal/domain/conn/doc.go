/*
Package conn owns the live connection set.

Registry is the only mutable shared structure in the gateway. All
membership changes and all iteration go through it under one lock;
fan-out works on immutable snapshots so a concurrent unregister cannot
corrupt iteration or expose a connection mid-removal.

Conn wraps the transport write side behind a per-connection mutex
(the websocket transport allows a single concurrent writer) and turns
every delivery failure into protocol.SendFailedError. Identities are
ULIDs and are never reused while anything could still reference them.
*/
package conn
