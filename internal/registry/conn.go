package registry

import (
	"sync/atomic"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
)

// Transport is the wire handle for one admitted connection. The registry
// record owns it exclusively; the channel index stores only connection ids,
// so teardown is a single authoritative removal path.
type Transport interface {
	// Enqueue hands an encoded event to the connection's writer. It must not
	// block; false reports a full outbound queue (the delivery is dropped).
	Enqueue(frame []byte) bool
	// Ping emits a liveness probe on the transport's control channel.
	Ping() error
	// Close tears down the underlying connection. Safe to call more than
	// once.
	Close() error
}

// FilterFunc decides whether a content message is delivered to a
// subscriber. A nil filter delivers everything.
type FilterFunc func(protocol.Envelope) bool

type subscription struct {
	filter FilterFunc
}

// conn is the registry's record for one live connection.
type conn struct {
	id        string
	userID    string
	transport Transport
	subs      map[string]*subscription

	// lastAckMs is the unix-ms timestamp of the last liveness
	// acknowledgment, updated lock-free from the pong handler.
	lastAckMs atomic.Int64

	removed bool
}

// DeliveryStatus describes the outcome of delivering one event to one
// recipient.
type DeliveryStatus int

const (
	// StatusQueued means the event was handed to the recipient's writer.
	StatusQueued DeliveryStatus = iota
	// StatusDropped means the recipient's outbound queue was full or the
	// transport refused the frame.
	StatusDropped
	// StatusFiltered means the recipient's subscription filter rejected the
	// event.
	StatusFiltered
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDropped:
		return "dropped"
	case StatusFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Delivery is the per-recipient outcome of one publish.
type Delivery struct {
	ConnID string
	UserID string
	Status DeliveryStatus
}
