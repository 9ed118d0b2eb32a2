// Package runtime wires storage and configuration for a single relay node
// and hands shared handles to the services and transports built on top.
package runtime
