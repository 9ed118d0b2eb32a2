// Package httpserver exposes a relay node over HTTP: the WebSocket upgrade
// endpoint, health and stats, a server-side publish hook, and Prometheus
// metrics.
package httpserver
