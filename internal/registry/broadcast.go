package registry

import (
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// Publish fans the event out to the channel's current subscriber set,
// excluding the given connection id (usually the sender). Delivery to each
// recipient is best-effort: a refused or dropped frame is recorded in the
// returned outcome list and never aborts delivery to the rest.
//
// The subscriber set is read at the moment of publish and frames are handed
// to each recipient's single writer outside the lock, so events from one
// publisher reach every subscriber in publish order. Concurrent publishers
// to the same channel may interleave differently per subscriber; callers
// needing a channel-wide total order must serialize their publishes.
func (r *Registry) Publish(channelID string, env protocol.Envelope, exclude string) []Delivery {
	frame, err := env.Encode()
	if err != nil {
		r.logger.Error("encode event", logpkg.Err(err), logpkg.Str("channel", channelID))
		return nil
	}

	type target struct {
		id        string
		userID    string
		transport Transport
		filter    FilterFunc
	}
	r.mu.RLock()
	set := r.channels[channelID]
	targets := make([]target, 0, len(set))
	for id := range set {
		if id == exclude {
			continue
		}
		c, ok := r.conns[id]
		if !ok {
			// The channel index only holds registered conn ids; both maps
			// mutate under the same write lock.
			continue
		}
		var f FilterFunc
		if sub := c.subs[channelID]; sub != nil {
			f = sub.filter
		}
		targets = append(targets, target{id: id, userID: c.userID, transport: c.transport, filter: f})
	}
	r.mu.RUnlock()

	outcomes := make([]Delivery, 0, len(targets))
	for _, t := range targets {
		if t.filter != nil && env.Type == protocol.TypeMessage && !t.filter(env) {
			outcomes = append(outcomes, Delivery{ConnID: t.id, UserID: t.userID, Status: StatusFiltered})
			r.metrics.Delivered(StatusFiltered)
			continue
		}
		if t.transport.Enqueue(frame) {
			outcomes = append(outcomes, Delivery{ConnID: t.id, UserID: t.userID, Status: StatusQueued})
			r.metrics.Delivered(StatusQueued)
			continue
		}
		outcomes = append(outcomes, Delivery{ConnID: t.id, UserID: t.userID, Status: StatusDropped})
		r.metrics.Delivered(StatusDropped)
		r.logger.Warn("delivery dropped",
			logpkg.Str("channel", channelID),
			logpkg.Str("conn_id", t.id),
			logpkg.Str("type", env.Type))
	}
	return outcomes
}

// Send delivers an event to a single connection outside any channel
// fan-out (the connected acknowledgment uses this).
func (r *Registry) Send(connID string, env protocol.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	if !c.transport.Enqueue(frame) {
		r.metrics.Delivered(StatusDropped)
		r.logger.Warn("direct send dropped", logpkg.Str("conn_id", connID), logpkg.Str("type", env.Type))
	}
	return nil
}
