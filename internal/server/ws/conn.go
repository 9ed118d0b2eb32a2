package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// wsConn adapts a gorilla connection to the registry transport. All writes
// go through a single pump goroutine; Enqueue and Ping never block.
type wsConn struct {
	ws           *websocket.Conn
	send         chan []byte
	pings        chan struct{}
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
}

func newWSConn(c *websocket.Conn, queueSize int, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		ws:           c,
		send:         make(chan []byte, queueSize),
		pings:        make(chan struct{}, 1),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// Enqueue hands a frame to the write pump. Returns false when the send
// queue is full or the connection is closing; the caller drops the frame.
func (c *wsConn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Ping requests a protocol-level ping. A pending probe coalesces.
func (c *wsConn) Ping() error {
	select {
	case <-c.done:
		return errConnClosed
	case c.pings <- struct{}{}:
		return nil
	default:
		return nil
	}
}

// Close stops the pump, which sends a close frame and tears down the socket.
// Idempotent.
func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// writePump is the single writer for the socket. It exits on the first write
// error or when Close is called; the read loop then fails and cleans up.
func (c *wsConn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-c.pings:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
			return
		}
	}
}
