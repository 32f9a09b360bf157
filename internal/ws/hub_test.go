package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pliu/chattycore/internal/chat"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	store := chat.NewStore(dir + "/state.json")
	hub := NewHub(store)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// recvType reads frames until one of the given types is found (dropping
// any interleaved "connected" handshake frame), failing the test if none
// arrives before the deadline.
func recvType(t *testing.T, conn *websocket.Conn, want ...string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read (want %v): %v", want, err)
		}
		var env map[string]any
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		typ, _ := env["type"].(string)
		for _, w := range want {
			if typ == w {
				return env
			}
		}
	}
}

func TestRegisterSuccess(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	send(t, conn, "register", map[string]any{"id": "alice", "username": "alice"})
	env := recvType(t, conn, "register_success")
	data := env["data"].(map[string]any)
	if data["recoveryCode"] == "" || data["recoveryCode"] == nil {
		t.Fatalf("expected recoveryCode in register_success, got %v", data)
	}
	user := data["user"].(map[string]any)
	if user["id"] != "alice" {
		t.Fatalf("expected user id alice, got %v", user["id"])
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	_, srv := newTestHub(t)
	a := dial(t, srv)
	send(t, a, "register", map[string]any{"id": "alice", "username": "alice"})
	recvType(t, a, "register_success")

	b := dial(t, srv)
	send(t, b, "register", map[string]any{"id": "alice2", "username": "alice"})
	env := recvType(t, b, "register_error")
	data := env["data"].(map[string]any)
	if data["reason"] != "username_taken" {
		t.Fatalf("expected username_taken, got %v", data)
	}
}

// TestDeliveryPromotionOnLogin is spec.md §8 scenario 1: A online, B
// offline, A sends a message; B logs in later and receives it already
// promoted to delivered, and every session sees messages_batch_delivered.
func TestDeliveryPromotionOnLogin(t *testing.T) {
	_, srv := newTestHub(t)

	a := dial(t, srv)
	send(t, a, "register", map[string]any{"id": "a", "username": "a"})
	recvType(t, a, "register_success")

	b := dial(t, srv)
	send(t, b, "register", map[string]any{"id": "b", "username": "b"})
	recvType(t, b, "register_success")
	b.Close() // B goes offline before A's message arrives.
	recvType(t, a, "user_offline")

	send(t, a, "send_message", map[string]any{"id": "m1", "receiverId": "b", "text": "hi"})
	sent := recvType(t, a, "message_sent")
	data := sent["data"].(map[string]any)
	if data["status"] != "sent" {
		t.Fatalf("expected status sent, got %v", data["status"])
	}

	// B reconnects and logs in.
	b2 := dial(t, srv)
	send(t, b2, "login", map[string]any{"userId": "b"})
	loginEnv := recvType(t, b2, "login_success")
	snap := loginEnv["data"].(map[string]any)
	msgs := snap["messages"].(map[string]any)["a:b"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message in chat a:b, got %d", len(msgs))
	}
	got := msgs[0].(map[string]any)
	if got["status"] != "delivered" {
		t.Fatalf("expected delivered status on catch-up, got %v", got["status"])
	}

	batch := recvType(t, a, "messages_batch_delivered")
	bdata := batch["data"].(map[string]any)
	if bdata["userId"] != "b" {
		t.Fatalf("expected batch for user b, got %v", bdata)
	}
}

func TestReactionToggle(t *testing.T) {
	_, srv := newTestHub(t)
	a := dial(t, srv)
	send(t, a, "register", map[string]any{"id": "a", "username": "a"})
	recvType(t, a, "register_success")
	b := dial(t, srv)
	send(t, b, "register", map[string]any{"id": "b", "username": "b"})
	recvType(t, b, "register_success")

	send(t, a, "send_message", map[string]any{"id": "m1", "receiverId": "b", "text": "hi"})
	recvType(t, a, "message_sent")
	recvType(t, b, "new_message")

	send(t, a, "add_reaction", map[string]any{"chatId": "a:b", "messageId": "m1", "emoji": "👍"})
	env := recvType(t, a, "reaction_updated")
	reactions := env["data"].(map[string]any)["reactions"].([]any)
	if len(reactions) != 1 {
		t.Fatalf("expected 1 reaction, got %d", len(reactions))
	}

	send(t, a, "add_reaction", map[string]any{"chatId": "a:b", "messageId": "m1", "emoji": "👍"})
	env = recvType(t, a, "reaction_updated")
	reactions = env["data"].(map[string]any)["reactions"].([]any)
	if len(reactions) != 0 {
		t.Fatalf("expected reaction toggled off, got %d", len(reactions))
	}
}

func TestBlockedSend(t *testing.T) {
	_, srv := newTestHub(t)
	a := dial(t, srv)
	send(t, a, "register", map[string]any{"id": "a", "username": "a"})
	recvType(t, a, "register_success")
	b := dial(t, srv)
	send(t, b, "register", map[string]any{"id": "b", "username": "b"})
	recvType(t, b, "register_success")

	send(t, a, "block_user", map[string]any{"userId": "b", "isBlocked": true})
	recvType(t, a, "user_blocked")
	recvType(t, b, "you_were_blocked")

	send(t, b, "send_message", map[string]any{"id": "m1", "receiverId": "a", "text": "hi"})
	recvType(t, b, "message_blocked")
}
