// Package ws carries relay connections over WebSocket. It authenticates the
// handshake, admits the socket into the registry, and runs the per-connection
// read loop and write pump.
package ws
