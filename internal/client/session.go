package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/client/outbox"
	cfgpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/config"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
	idpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/id"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// ErrSuspended aborts a drain without charging a retry, used when the
// session goes offline mid-drain.
var ErrSuspended = errors.New("client: drain suspended")

// EventFunc receives server-emitted envelopes.
type EventFunc func(env protocol.Envelope)

// SessionOptions configures a Session.
type SessionOptions struct {
	// URL is the relay WebSocket endpoint, e.g. ws://host:port/ws.
	URL   string
	Token string
	// DB stores the durable outbox.
	DB      *pebblestore.DB
	OnEvent EventFunc
	// OnDead receives actions parked after exhausting retries.
	OnDead DeadFunc
	Config cfgpkg.ClientConfig
	Dialer *websocket.Dialer
	Logger logpkg.Logger
}

// Session is one client connection to a relay node. Mutations take one of
// two paths: online they go straight to the socket, offline they land in the
// durable outbox and are replayed in order on reconnect.
type Session struct {
	url     string
	token   string
	dialer  *websocket.Dialer
	onEvent EventFunc
	log     logpkg.Logger

	out *outbox.Outbox
	rec *Reconciler

	mu     sync.Mutex
	conn   *websocket.Conn
	online bool

	// wmu serializes socket writes. Dispatch and the drain goroutine
	// both write, and gorilla connections allow only one writer.
	wmu sync.Mutex

	writeTimeout time.Duration
	newID        func() string
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.DB == nil {
		return nil, errors.New("client: storage required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	out, err := outbox.Open(opts.DB)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	s := &Session{
		url:          opts.URL,
		token:        opts.Token,
		dialer:       dialer,
		onEvent:      opts.OnEvent,
		log:          logger.WithComponent("client"),
		out:          out,
		writeTimeout: 10 * time.Second,
	}
	gen := idpkg.NewGenerator()
	// Action ids sort by mint time, so a restored outbox drains in the
	// order the user acted.
	s.newID = func() string { return gen.Next().String() }
	s.rec = NewReconciler(ReconcilerOptions{
		Outbox:     out,
		Apply:      s.replay,
		OnDead:     opts.OnDead,
		MaxRetries: opts.Config.MaxRetries,
		BackoffMin: opts.Config.RetryBackoffMin(),
		BackoffMax: opts.Config.RetryBackoffMax(),
		Logger:     logger,
	})
	return s, nil
}

// Connect dials the relay and brings the session online. A successful
// connect starts draining any actions queued while offline.
func (s *Session) Connect(ctx context.Context) error {
	url := s.url
	if s.token != "" {
		url += "?token=" + s.token
	}
	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("client: dial: %w", err)
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.online = true
	s.mu.Unlock()

	go s.readLoop(conn)
	go func() {
		if err := s.rec.Drain(context.Background()); err != nil {
			s.log.Warnf("drain: %v", err)
		}
	}()
	return nil
}

// Close tears down the connection and marks the session offline. Queued
// actions stay durable for the next session.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.online = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Online reports the current connectivity state.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline forces the connectivity state. Transitioning to online with a
// live connection triggers a drain; transitioning to offline routes new
// mutations into the outbox.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online && s.conn != nil
	trigger := s.online
	s.mu.Unlock()
	if trigger {
		go func() {
			if err := s.rec.Drain(context.Background()); err != nil {
				s.log.Warnf("drain: %v", err)
			}
		}()
	}
}

// Subscribe registers interest in a channel, optionally with a filter
// expression applied server-side to content messages.
func (s *Session) Subscribe(ctx context.Context, channelID, filter string) error {
	var data json.RawMessage
	if filter != "" {
		b, err := json.Marshal(protocol.SubscribeData{Filter: filter})
		if err != nil {
			return err
		}
		data = b
	}
	_, err := s.Dispatch(ctx, protocol.Envelope{Type: protocol.TypeSubscribe, ChannelID: channelID, Data: data})
	return err
}

// Unsubscribe drops interest in a channel.
func (s *Session) Unsubscribe(ctx context.Context, channelID string) error {
	_, err := s.Dispatch(ctx, protocol.Envelope{Type: protocol.TypeUnsubscribe, ChannelID: channelID})
	return err
}

// SendMessage publishes a content message and returns its action id.
func (s *Session) SendMessage(ctx context.Context, channelID string, data json.RawMessage) (string, error) {
	return s.Dispatch(ctx, protocol.Envelope{Type: protocol.TypeMessage, ChannelID: channelID, Data: data})
}

// Dispatch routes one client-originated envelope. Online it goes straight
// to the socket; offline it is queued durably and replayed on reconnect.
// The returned action id identifies the mutation in both paths.
func (s *Session) Dispatch(ctx context.Context, env protocol.Envelope) (string, error) {
	if env.ActionID == "" {
		env.ActionID = s.newID()
	}
	frame, err := env.Encode()
	if err != nil {
		return "", err
	}
	if err := s.writeFrame(frame); err == nil {
		return env.ActionID, nil
	} else if !errors.Is(err, ErrSuspended) {
		// Live write failed: the connection is gone. Fall through to
		// the durable path so the mutation is not lost.
		s.log.Debugf("write failed, queuing action %s: %v", env.ActionID, err)
		s.markOffline()
	}
	if _, err := s.out.Enqueue(ctx, env.ActionID, frame); err != nil {
		return "", err
	}
	return env.ActionID, nil
}

// PendingCount reports actions waiting for reconciliation.
func (s *Session) PendingCount() (int, error) { return s.out.PendingCount() }

// DeadLetters lists actions that exhausted their retries.
func (s *Session) DeadLetters() ([]outbox.Action, error) { return s.out.DeadLetters() }

// Drain forces a reconciliation pass. Normally triggered automatically on
// reconnect; re-entry while one runs is a no-op.
func (s *Session) Drain(ctx context.Context) error { return s.rec.Drain(ctx) }

// replay resends a queued action over the live connection.
func (s *Session) replay(ctx context.Context, a outbox.Action) error {
	return s.writeFrame(a.Payload)
}

func (s *Session) writeFrame(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	online := s.online
	s.mu.Unlock()
	if !online || conn == nil {
		return ErrSuspended
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Session) markOffline() {
	s.mu.Lock()
	s.online = false
	s.mu.Unlock()
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.online = false
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			s.log.Debugf("read loop ended: %v", err)
			return
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			s.log.Debugf("dropping frame: %v", err)
			continue
		}
		if s.onEvent != nil {
			s.onEvent(env)
		}
	}
}
