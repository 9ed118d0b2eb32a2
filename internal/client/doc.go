// Package client implements the offline-resilient side of the relay
// protocol: a session over WebSocket, a durable outbox for mutations made
// while disconnected, and a reconciler that replays them in order once the
// connection returns.
package client
