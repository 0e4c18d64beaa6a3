/*
Package dispatch routes inbound envelopes to their handlers.

The handler table is built once at startup from a fixed registration
list and never mutated; the closed kind set grows only by adding a
handler to the wiring. Unknown kinds get exactly one error envelope
back and run nothing.

Handlers run in one of two modes. Sync handlers (ping) execute inline
on the connection's read-loop goroutine. Async handlers (workflow
triggers, capability calls, broadcast) execute on tracked goroutines:
a connection keeps reading while its earlier dispatches are still in
flight, so messages are dispatched in receipt order but replies may
interleave. That interleaving is contract, not accident; clients
correlate through the echoed envelope ID.

Every per-message failure is recovered here and reported to the
originating connection as a <kind>_error envelope. A dispatch failure
never closes a connection and never touches another connection's
processing. Disconnects do not cancel in-flight work; the reply's
delivery fails and is discarded into the error log.

The tracked goroutines feed Drain, which the lifecycle manager uses
to bound shutdown.
*/
package dispatch
