package signal

import (
	"sync"
	"sync/atomic"
	"time"

	"peerlink/internal/core/domain"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla websocket connection to ports.PeerConn.
// Writes are serialized under a mutex because the router, the presence
// broadcaster and the offline flush all write from other peers'
// goroutines. Close is idempotent.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) WriteEnvelope(env *domain.Envelope) error {
	if c.closed.Load() {
		return domain.ErrConnClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(env)
}

// Ping sends a websocket ping control frame. Control frames may be
// written concurrently with WriteJSON, so no mutex here.
func (c *wsConn) Ping() error {
	if c.closed.Load() {
		return domain.ErrConnClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func (c *wsConn) Open() bool {
	return !c.closed.Load()
}
