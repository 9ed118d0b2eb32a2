// Package serverrun wires and runs a relay node: storage, registry, the
// liveness monitor, and the HTTP/WebSocket surface.
package serverrun
