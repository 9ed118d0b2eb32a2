package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/auth"
	cfgpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/config"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/registry"
	messagesvc "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/services/messages"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// Options configures the Handler.
type Options struct {
	Registry  *registry.Registry
	Service   *messagesvc.Service
	Validator auth.TokenValidator
	Config    cfgpkg.Config
	Logger    logpkg.Logger
	// CheckOrigin overrides the upgrader origin policy. Nil allows all.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades HTTP requests to relay connections and runs their
// read loops. One goroutine reads, one writes, per connection.
type Handler struct {
	reg      *registry.Registry
	svc      *messagesvc.Service
	val      auth.TokenValidator
	cfg      cfgpkg.Config
	log      logpkg.Logger
	upgrader websocket.Upgrader
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Handler{
		reg: opts.Registry,
		svc: opts.Service,
		val: opts.Validator,
		cfg: opts.Config,
		log: logger.WithComponent("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     check,
		},
	}
}

type connectedData struct {
	ConnID string `json:"connId"`
	UserID string `json:"userId"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debugf("upgrade failed: %v", err)
		return
	}
	if token == "" {
		closeWith(sock, protocol.CloseNoToken, "missing token")
		return
	}
	userID, err := h.val.Validate(token)
	if err != nil {
		closeWith(sock, protocol.CloseInvalidToken, "invalid token")
		return
	}

	limits := h.cfg.Limits
	c := newWSConn(sock, limits.SendQueueSize, limits.WriteTimeout())
	go c.writePump()

	connID := h.reg.Admit(c, userID)
	ack, _ := json.Marshal(connectedData{ConnID: connID, UserID: userID})
	_ = h.reg.Send(connID, protocol.Envelope{
		Type:      protocol.TypeConnected,
		Data:      ack,
		Timestamp: time.Now().UnixMilli(),
	})

	h.readLoop(connID, c, sock)
}

func (h *Handler) readLoop(connID string, c *wsConn, sock *websocket.Conn) {
	defer func() {
		_ = c.Close()
		h.reg.Remove(connID)
	}()

	deadline := h.cfg.Liveness.Deadline()
	sock.SetReadLimit(h.cfg.Limits.MaxMessageBytes)
	_ = sock.SetReadDeadline(time.Now().Add(deadline))
	sock.SetPongHandler(func(string) error {
		h.reg.Touch(connID)
		return sock.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, frame, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				h.log.Debugf("read error conn=%s: %v", connID, err)
			}
			return
		}
		h.reg.Touch(connID)
		_ = sock.SetReadDeadline(time.Now().Add(deadline))
		if err := h.svc.HandleInbound(connID, frame); err != nil {
			if errors.Is(err, protocol.ErrMalformedEnvelope) {
				// Drop the frame, keep the connection.
				h.log.Debugf("dropped frame conn=%s: %v", connID, err)
				continue
			}
			if errors.Is(err, registry.ErrNotRegistered) {
				return
			}
			h.log.Warnf("inbound conn=%s: %v", connID, err)
		}
	}
}

// bearerToken pulls the credential from the token query parameter or an
// Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	const prefix = "Bearer "
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, prefix) {
		return strings.TrimPrefix(v, prefix)
	}
	return ""
}

// closeWith rejects a just-upgraded socket with an application close code.
func closeWith(sock *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
	_ = sock.Close()
}
