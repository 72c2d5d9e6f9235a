package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 256 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSConfig contains WebSocket keepalive settings
type WSConfig struct {
	PingInterval time.Duration // default 30s; the read deadline is twice this
}

// WSConn sends payloads as base64 text messages
type WSConn struct {
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an upgraded connection
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) Send(p *Payload, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(p.Base64))
}

func (c *WSConn) ping(deadline time.Time) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// ServeWebSocket upgrades the request and registers it with hub. It blocks
// until the subscriber disconnects.
func ServeWebSocket(hub *Hub, cfg WSConfig, w http.ResponseWriter, r *http.Request) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	conn := NewWSConn(raw)

	sub, err := hub.Register(conn, TransportWebSocket, r.RemoteAddr)
	if err != nil {
		_ = conn.Close()
		return
	}

	go keepAlive(sub, conn, cfg.PingInterval)
	readPump(hub, sub, raw, cfg.PingInterval*2)
	<-sub.Finished()
}

func keepAlive(sub *Subscriber, conn *WSConn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			return
		case <-ticker.C:
			if err := conn.ping(time.Now().Add(10 * time.Second)); err != nil {
				sub.hub.Unregister(sub.ID, err)
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnection
func readPump(hub *Hub, sub *Subscriber, conn *websocket.Conn, readTimeout time.Duration) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var reason error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = err
			}
			hub.Unregister(sub.ID, reason)
			return
		}
	}
}
