// Package messagesvc implements the envelope semantics of a relay node on top
// of the connection registry: inbound dispatch, server-side stamping, replay
// deduplication by action id, and optional per-subscription CEL filters.
package messagesvc
