package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// ErrNotRegistered is returned for operations on a connection id the
// registry does not know (never admitted, or already removed).
var ErrNotRegistered = errors.New("connection not registered")

// Options configures a Registry.
type Options struct {
	// ProbeInterval is the liveness sweep cadence. Zero means 30s.
	ProbeInterval time.Duration
	// Deadline is how long a connection may go without acknowledging a
	// probe before eviction. Zero means 60s.
	Deadline time.Duration
	// Logger receives structured registry events. Nil means a default.
	Logger logpkg.Logger
	// Metrics observes registry activity. Nil means no-op.
	Metrics Metrics
}

// Registry owns the set of live connections and the derived channel index.
// All mutation goes through one mutex, which is the synchronization
// boundary for the whole subscriber-set structure.
type Registry struct {
	mu sync.RWMutex
	// conns maps connection id to its record; the record owns the
	// transport handle.
	conns map[string]*conn
	// channels maps channel id to the set of subscribed connection ids. A
	// channel exists while it has at least one subscriber.
	channels map[string]map[string]struct{}

	probeInterval time.Duration
	deadline      time.Duration
	logger        logpkg.Logger
	metrics       Metrics

	nowMs func() int64
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 30 * time.Second
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("registry"))
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Registry{
		conns:         make(map[string]*conn),
		channels:      make(map[string]map[string]struct{}),
		probeInterval: opts.ProbeInterval,
		deadline:      opts.Deadline,
		logger:        logger,
		metrics:       metrics,
		nowMs:         func() int64 { return time.Now().UnixMilli() },
	}
}

// Admit creates a new connection record owning the transport handle and
// returns its id. Ids are unique per admitted session and never reused.
func (r *Registry) Admit(t Transport, userID string) string {
	c := &conn{
		id:        uuid.NewString(),
		userID:    userID,
		transport: t,
		subs:      make(map[string]*subscription),
	}
	c.lastAckMs.Store(r.nowMs())

	r.mu.Lock()
	r.conns[c.id] = c
	total := len(r.conns)
	r.mu.Unlock()

	r.metrics.ConnAdmitted(total)
	r.logger.Info("connection admitted",
		logpkg.Str("conn_id", c.id), logpkg.Str("user_id", userID))
	return c.id
}

// SubscribeOption customizes one subscription.
type SubscribeOption func(*subscription)

// WithFilter attaches a delivery filter to the subscription.
func WithFilter(f FilterFunc) SubscribeOption {
	return func(s *subscription) { s.filter = f }
}

// Subscribe adds the connection to the channel's subscriber set and the
// channel to the connection's set. Subscribing twice is a no-op (though
// options are re-applied). A synthetic join event is fanned out to the
// channel, excluding the joining connection.
func (r *Registry) Subscribe(connID, channelID string, opts ...SubscribeOption) error {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	sub, existed := c.subs[channelID]
	if !existed {
		sub = &subscription{}
		c.subs[channelID] = sub
		set := r.channels[channelID]
		if set == nil {
			set = make(map[string]struct{})
			r.channels[channelID] = set
		}
		set[connID] = struct{}{}
	}
	for _, opt := range opts {
		opt(sub)
	}
	userID := c.userID
	channelTotal := len(r.channels)
	r.mu.Unlock()

	if existed {
		return nil
	}
	r.metrics.ChannelGauge(channelTotal)
	r.Publish(channelID, protocol.Envelope{
		Type:      protocol.TypeJoin,
		ChannelID: channelID,
		SenderID:  userID,
		Timestamp: r.nowMs(),
	}, connID)
	return nil
}

// Unsubscribe removes the connection from the channel's subscriber set.
// Idempotent.
func (r *Registry) Unsubscribe(connID, channelID string) error {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	if _, subscribed := c.subs[channelID]; !subscribed {
		r.mu.Unlock()
		return nil
	}
	delete(c.subs, channelID)
	r.dropFromChannel(channelID, connID)
	channelTotal := len(r.channels)
	r.mu.Unlock()

	r.metrics.ChannelGauge(channelTotal)
	return nil
}

// Remove atomically removes the connection from every channel it was
// subscribed to and deletes its record, then emits a synthetic leave event
// to each of those channels. Overlapping disconnect and liveness-timeout
// paths may both call it; only the first call does anything.
func (r *Registry) Remove(connID string) []string {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok || c.removed {
		r.mu.Unlock()
		return nil
	}
	c.removed = true
	channels := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		channels = append(channels, ch)
		r.dropFromChannel(ch, connID)
	}
	delete(r.conns, connID)
	userID := c.userID
	total := len(r.conns)
	channelTotal := len(r.channels)
	r.mu.Unlock()

	sort.Strings(channels)
	r.metrics.ConnRemoved(total)
	r.metrics.ChannelGauge(channelTotal)
	now := r.nowMs()
	for _, ch := range channels {
		r.Publish(ch, protocol.Envelope{
			Type:      protocol.TypeLeave,
			ChannelID: ch,
			SenderID:  userID,
			Timestamp: now,
		}, connID)
	}
	r.logger.Info("connection removed",
		logpkg.Str("conn_id", connID), logpkg.Int("channels", len(channels)))
	return channels
}

// dropFromChannel removes connID from the channel set and garbage-collects
// the channel when it becomes empty. Caller holds r.mu.
func (r *Registry) dropFromChannel(channelID, connID string) {
	set, ok := r.channels[channelID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.channels, channelID)
	}
}

// Touch records a liveness acknowledgment for the connection.
func (r *Registry) Touch(connID string) {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if ok {
		c.lastAckMs.Store(r.nowMs())
	}
}

// UserID returns the owning user of a connection.
func (r *Registry) UserID(connID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return "", ErrNotRegistered
	}
	return c.userID, nil
}

// Subscribed reports whether the connection is currently subscribed to the
// channel.
func (r *Registry) Subscribed(connID, channelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	_, subscribed := c.subs[channelID]
	return subscribed
}

// Channels returns the connection's subscribed channel ids, sorted.
func (r *Registry) Channels(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Subscribers returns the current subscriber connection ids of a channel,
// sorted. Empty when the channel does not exist.
func (r *Registry) Subscribers(channelID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.channels[channelID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stats is a point-in-time snapshot of registry state for the ops surface.
type Stats struct {
	Connections int            `json:"connections"`
	Channels    int            `json:"channels"`
	PerChannel  map[string]int `json:"perChannel"`
}

// Snapshot returns current registry statistics.
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	per := make(map[string]int, len(r.channels))
	for ch, set := range r.channels {
		per[ch] = len(set)
	}
	return Stats{Connections: len(r.conns), Channels: len(r.channels), PerChannel: per}
}
