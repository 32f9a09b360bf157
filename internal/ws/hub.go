// Package ws is the transport and Session Registry / Router of spec.md
// §4.2 and §6: it accepts gorilla/websocket connections, binds each one to
// a user identity via internal/session, and addresses outbound events to
// exactly the users spec.md §6's three routing rules name. The teacher
// (pliu-chatty/internal/ws/hub.go) owns a single map[*Client]bool fed by
// register/unregister channels and a broadcast channel; this Hub keeps that
// registry-behind-one-owner shape but the registry key is now the bound
// user ID (spec.md's "at most one connection per user") and the payload is
// an arbitrary chat.Outbound instead of one fixed Message struct.
package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pliu/chattycore/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub is the Session Registry + Router. Registry mutations (bind/unbind)
// and routing (deliver) both take mu, which stands in for the single
// global mutex spec.md §5 allows as a valid realization of the
// single-writer model -- chat.Store already serializes every mutation
// behind its own mutex, so Hub's lock only needs to protect its own
// userID -> *Client map, not the Store.
type Hub struct {
	store *chat.Store

	mu     sync.Mutex
	byUser map[string]*Client
}

func NewHub(store *chat.Store) *Hub {
	return &Hub{store: store, byUser: make(map[string]*Client)}
}

// ServeWS upgrades an HTTP request to a websocket connection and starts its
// read/write pumps. No identity is required at upgrade time -- spec.md
// §4.5: the connection binds to a user only once it sends register/login/
// login_recovery.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}
	c := newClient(h, conn)
	c.enqueue(chat.Event{Type: "connected", Data: map[string]any{}})
	go c.writePump()
	go c.readPump()
}

// bind registers userID -> c. A new bind for a user who already has a
// binding wins outright (last-writer); the prior connection is left
// orphaned, not force-closed -- spec.md §4.2 and §9's explicit resolution
// of that open question.
func (h *Hub) bind(userID string, c *Client) {
	h.mu.Lock()
	h.byUser[userID] = c
	h.mu.Unlock()
}

// unbind clears the registry mapping only if c still owns it, per spec.md
// §4.2: "clears the mapping if this connection still owns userId." An
// orphaned connection -- one a later login already evicted from the
// registry -- closing must NOT mark the user offline, since the newer
// connection is the one actually representing "online" now; only the
// owning connection's close reaches store.Unbind.
func (h *Hub) unbind(userID string, c *Client) {
	h.mu.Lock()
	owns := h.byUser[userID] == c
	if owns {
		delete(h.byUser, userID)
	}
	h.mu.Unlock()
	if !owns {
		return
	}
	events, err := h.store.Unbind(userID)
	if err != nil {
		log.Printf("ws: unbind %s: %v", userID, err)
		return
	}
	h.deliver(events)
}

func (h *Hub) lookup(userID string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.byUser[userID]
	return c, ok
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.byUser))
	for _, c := range h.byUser {
		out = append(out, c)
	}
	return out
}

func (h *Hub) snapshotExcept(exceptUserID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.byUser))
	for uid, c := range h.byUser {
		if uid == exceptUserID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dropSlow is called by Client.enqueue when a peer's outbound buffer is
// full (spec.md §5: "a slow peer that exceeds its buffer is closed").
// Removing it from the registry is a best-effort cleanup; the definitive
// unbind happens when its readPump notices the closed connection and runs
// its own deferred Close/unbind sequence.
func (h *Hub) dropSlow(c *Client) {
	h.mu.Lock()
	for uid, bound := range h.byUser {
		if bound == c {
			delete(h.byUser, uid)
		}
	}
	h.mu.Unlock()
	c.conn.Close()
}

// deliver realizes spec.md §6's three routing rules against the live
// registry. It is called after every command, whether or not the command
// produced any events -- an empty slice is simply a no-op.
func (h *Hub) deliver(events []chat.Outbound) {
	for _, ev := range events {
		switch ev.Kind {
		case chat.ToUser:
			if c, ok := h.lookup(ev.UserID); ok {
				c.enqueue(ev.Event)
			}
		case chat.Broadcast:
			for _, c := range h.snapshotClients() {
				c.enqueue(ev.Event)
			}
		case chat.BroadcastExceptUser:
			for _, c := range h.snapshotExcept(ev.ExceptUserID) {
				c.enqueue(ev.Event)
			}
		}
	}
}
