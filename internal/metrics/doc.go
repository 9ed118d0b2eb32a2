// Package metrics wires the node's Prometheus instruments into the registry
// and storage hooks and serves them over /metrics.
package metrics
