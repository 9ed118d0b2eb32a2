// Package outbox is the client's durable FIFO of mutations performed while
// offline. Each action carries a client-generated id so the server can
// deduplicate replays, a retry count, and the serialized envelope to resend.
// Actions that exhaust their retries move to a dead letter set instead of
// blocking the queue.
package outbox
