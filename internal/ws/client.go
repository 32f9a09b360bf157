package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pliu/chattycore/internal/chat"
	"github.com/pliu/chattycore/internal/session"
)

// Connection I/O tuning, the canonical gorilla/websocket readPump/writePump
// values (ping/pong keepalive, bounded write deadline) -- there is no
// teacher precedent (pliu-chatty/internal/ws/client.go is missing from the
// retrieved copy) so these are the library's own documented defaults.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxFrameBytes  = 1 << 16
	outboundBuffer = 256
)

// Client is one bound-or-unbound connection: the readPump decodes inbound
// frames and feeds them to its own session.Handler; the writePump drains
// send and is the only goroutine allowed to write to conn, per
// gorilla/websocket's single-writer-per-connection rule.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	handler *session.Handler
	send    chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		handler: session.NewHandler(hub.store),
		send:    make(chan []byte, outboundBuffer),
	}
}

// envelope is the wire shape of every event this server emits (spec.md §6).
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func encode(e chat.Event) []byte {
	b, err := json.Marshal(envelope{Type: e.Type, Data: e.Data})
	if err != nil {
		log.Printf("ws: marshal %s: %v", e.Type, err)
		return nil
	}
	return b
}

// enqueue is the non-blocking send spec.md §5 requires: a peer slower than
// its buffer is dropped rather than allowed to stall the rest of the hub.
func (c *Client) enqueue(e chat.Event) {
	b := encode(e)
	if b == nil {
		return
	}
	select {
	case c.send <- b:
	default:
		log.Printf("ws: dropping slow peer bound to %q", c.handler.CurrentUserID())
		c.hub.dropSlow(c)
	}
}

func (c *Client) readPump() {
	defer func() {
		if userID := c.handler.Close(); userID != "" {
			c.hub.unbind(userID, c)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		result := c.handler.Handle(raw)
		if result.Bound != "" {
			c.hub.bind(result.Bound, c)
		}
		for _, e := range result.Direct {
			c.enqueue(e)
		}
		c.hub.deliver(result.Routed)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
