// Package registry owns the set of live connections and the derived
// channel index, and implements broadcast fan-out and liveness eviction
// on top of them.
//
// All registry and index mutation goes through one mutex. Connection
// records are the sole owners of their transport handles; the channel
// index stores connection ids only, so removing a connection is a single
// authoritative teardown that can never leave a dangling handle behind.
//
// Fan-out is best-effort per recipient: Publish returns an explicit
// per-recipient outcome list instead of swallowing write failures, and a
// slow or full recipient never blocks delivery to the rest.
package registry
