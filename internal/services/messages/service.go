package messagesvc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/registry"
	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// Options configures the Service.
type Options struct {
	Registry *registry.Registry
	// DB backs replay deduplication by action id. Nil disables dedup.
	DB     *pebblestore.DB
	Logger logpkg.Logger
}

// Service owns the envelope semantics of a relay node: it dispatches inbound
// frames from live connections, stamps server-emitted events, deduplicates
// replayed mutations, and fans content out through the registry.
type Service struct {
	reg   *registry.Registry
	db    *pebblestore.DB
	log   logpkg.Logger
	nowMs func() int64

	// idemMu closes the window between the dedup check and its write, so
	// the same action replayed on two connections fans out once.
	idemMu sync.Mutex
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	return &Service{
		reg:   opts.Registry,
		db:    opts.DB,
		log:   logger.WithComponent("messages"),
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// HandleInbound dispatches one decoded client frame. A returned error that
// wraps protocol.ErrMalformedEnvelope means the frame was dropped; the
// connection stays open. registry.ErrNotRegistered means the connection is
// already gone and the caller should stop reading.
func (s *Service) HandleInbound(connID string, frame []byte) error {
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	switch env.Type {
	case protocol.TypeSubscribe:
		return s.handleSubscribe(connID, env)
	case protocol.TypeUnsubscribe:
		return s.handleUnsubscribe(connID, env)
	case protocol.TypeMessage:
		return s.handleMessage(connID, env)
	case protocol.TypeTyping, protocol.TypeRead:
		return s.handleEphemeral(connID, env)
	default:
		// connected/join/leave are server-emitted only
		return fmt.Errorf("%w: type %q is not client-originated", protocol.ErrMalformedEnvelope, env.Type)
	}
}

func (s *Service) handleSubscribe(connID string, env protocol.Envelope) error {
	if env.ChannelID == "" {
		return fmt.Errorf("%w: subscribe without channel", protocol.ErrMalformedEnvelope)
	}
	var data protocol.SubscribeData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("%w: subscribe data: %v", protocol.ErrMalformedEnvelope, err)
		}
	}
	filter, err := newCELFilter(data.Filter)
	if err != nil {
		return fmt.Errorf("%w: filter: %v", protocol.ErrMalformedEnvelope, err)
	}
	var opts []registry.SubscribeOption
	if f := filter.FilterFunc(); f != nil {
		opts = append(opts, registry.WithFilter(f))
	}
	return s.reg.Subscribe(connID, env.ChannelID, opts...)
}

func (s *Service) handleUnsubscribe(connID string, env protocol.Envelope) error {
	if env.ChannelID == "" {
		return fmt.Errorf("%w: unsubscribe without channel", protocol.ErrMalformedEnvelope)
	}
	return s.reg.Unsubscribe(connID, env.ChannelID)
}

func (s *Service) handleMessage(connID string, env protocol.Envelope) error {
	if env.ChannelID == "" {
		return fmt.Errorf("%w: message without channel", protocol.ErrMalformedEnvelope)
	}
	userID, err := s.reg.UserID(connID)
	if err != nil {
		return err
	}
	stamped := s.stamp(env, userID)
	if stamped.ActionID != "" && s.db != nil {
		applied, err := s.markApplied(stamped)
		if err != nil {
			return err
		}
		if applied {
			// Replayed mutation: already applied, do not fan out again.
			s.log.Debugf("dedup drop channel=%s action=%s", stamped.ChannelID, stamped.ActionID)
			return nil
		}
	}
	s.reg.Publish(stamped.ChannelID, stamped, connID)
	return nil
}

// markApplied records the first apply of an action id and reports whether it
// had already been recorded.
func (s *Service) markApplied(env protocol.Envelope) (bool, error) {
	key := idemKey(env.ChannelID, env.ActionID)
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	seen, err := s.db.Has(key)
	if err != nil || seen {
		return seen, err
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(env.Timestamp))
	return false, s.db.Set(key, b)
}

// handleEphemeral relays typing and read indicators. Unlike content messages
// they require an active subscription and are silently dropped otherwise.
func (s *Service) handleEphemeral(connID string, env protocol.Envelope) error {
	if env.ChannelID == "" {
		return fmt.Errorf("%w: %s without channel", protocol.ErrMalformedEnvelope, env.Type)
	}
	userID, err := s.reg.UserID(connID)
	if err != nil {
		return err
	}
	if !s.reg.Subscribed(connID, env.ChannelID) {
		s.log.Debugf("drop %s from non-subscriber conn=%s channel=%s", env.Type, connID, env.ChannelID)
		return nil
	}
	s.reg.Publish(env.ChannelID, s.stamp(env, userID), connID)
	return nil
}

// Broadcast injects a server-originated content message into a channel, for
// the HTTP publish endpoint and internal announcements. No sender exclusion.
func (s *Service) Broadcast(channelID, senderID string, data json.RawMessage) []registry.Delivery {
	env := protocol.Envelope{
		Type:      protocol.TypeMessage,
		ChannelID: channelID,
		Data:      data,
		SenderID:  senderID,
		Timestamp: s.nowMs(),
	}
	return s.reg.Publish(channelID, env, "")
}

// stamp assigns the server-authoritative sender and timestamp, discarding
// whatever the client supplied.
func (s *Service) stamp(env protocol.Envelope, userID string) protocol.Envelope {
	env.SenderID = userID
	env.Timestamp = s.nowMs()
	return env
}

func idemKey(channel, action string) []byte {
	// chan/{channel}/idem/{action}
	b := make([]byte, 0, len(channel)+len(action)+11)
	b = append(b, 'c', 'h', 'a', 'n', '/')
	b = append(b, channel...)
	b = append(b, '/', 'i', 'd', 'e', 'm', '/')
	b = append(b, action...)
	return b
}
