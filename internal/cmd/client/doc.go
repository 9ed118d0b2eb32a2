// Package client implements the relay CLI's client-side commands: sending
// and listening over a live session, inspecting the durable outbox, and the
// small HTTP ops surface (stats, server-side publish).
//
// Connection settings come from flags or the RELAY_WS, RELAY_TOKEN and
// RELAY_HTTP environment variables.
package client
