// Package session is the Session Handler of spec.md §4.5: a per-connection
// dispatcher that owns currentUserId and turns one decoded inbound frame
// into the Store call it names, plus the reply that goes straight back to
// the connection that sent it. It never touches a socket or the Hub's
// registry directly -- internal/ws calls Handle and Close and does the
// actual delivery, which is what lets Handler be tested with nothing but a
// *chat.Store (no network, no websocket) per spec.md §9's "mutators return
// events, testing trivial" design note extended one layer up.
package session

import (
	"encoding/json"
	"log"

	"github.com/pliu/chattycore/internal/chat"
)

// Handler is the per-connection state the teacher's middleware.AuthMiddleware
// resolves once per HTTP request; here it's resolved once per bound
// connection and kept for the connection's lifetime (spec.md §4.5).
type Handler struct {
	store         *chat.Store
	currentUserID string
}

func NewHandler(store *chat.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) CurrentUserID() string { return h.currentUserID }

// Close reports the user ID this connection was bound to, if any, so
// internal/ws can ask the registry to unbind it (spec.md §4.2). Handler
// itself holds no registry state.
func (h *Handler) Close() string { return h.currentUserID }

// Result is what handling one inbound frame produces. Direct is delivered
// straight back to the connection that sent it, bypassing the registry
// entirely -- needed because register_error/login_error/username_check_result/
// search_result fire on connections that aren't bound to any user yet, so
// there is no userId the Hub's registry could route a reply to (spec.md §7:
// "errors are reported only to the originating session"). Routed is handed
// to the Hub's router for spec.md §6's sendToUser/broadcast addressing --
// almost always exactly what a chat.Store mutator returned, unmodified.
type Result struct {
	Bound  string
	Direct []chat.Event
	Routed []chat.Outbound
}

func direct(eventType string, data any) Result {
	return Result{Direct: []chat.Event{{Type: eventType, Data: data}}}
}

func routed(events []chat.Outbound) Result {
	return Result{Routed: events}
}

type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handle decodes one inbound frame and dispatches it by command type.
// Malformed frames and unknown command types are logged and dropped
// (spec.md §7's Validation class).
func (h *Handler) Handle(raw []byte) Result {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("session: malformed frame: %v", err)
		return Result{}
	}

	switch env.Type {
	case "register":
		return h.register(env.Data)
	case "login":
		return h.login(env.Data)
	case "login_recovery":
		return h.loginRecovery(env.Data)
	case "check_username":
		return h.checkUsername(env.Data)
	case "search_user":
		return h.searchUser(env.Data)
	case "heartbeat":
		return direct("heartbeat_ack", struct{}{})

	case "send_message":
		return h.sendMessage(env.Data)
	case "forward_message":
		return h.forwardMessage(env.Data)
	case "edit_message":
		return h.editMessage(env.Data)
	case "delete_message":
		return h.deleteMessage(env.Data)
	case "mark_seen":
		return h.markSeen(env.Data)
	case "mark_messages_seen":
		return h.markMessagesSeen(env.Data)
	case "typing":
		return h.typing(env.Data)
	case "update_profile":
		return h.updateProfile(env.Data)
	case "delete_account":
		return h.deleteAccount(env.Data)
	case "block_user":
		return h.blockUser(env.Data)
	case "pin_chat":
		return h.pinChat(env.Data)
	case "delete_chat":
		return h.deleteChat(env.Data)
	case "pin_message":
		return h.pinMessage(env.Data)
	case "add_reaction":
		return h.addReaction(env.Data)

	case "create_group":
		return h.createGroup(env.Data)
	case "send_group_message":
		return h.sendGroupMessage(env.Data)
	case "forward_group_message":
		return h.forwardGroupMessage(env.Data)
	case "mark_group_seen":
		return h.markGroupSeen(env.Data)
	case "mark_group_messages_seen":
		return h.markGroupMessagesSeen(env.Data)
	case "edit_group_message":
		return h.editGroupMessage(env.Data)
	case "delete_group_message":
		return h.deleteGroupMessage(env.Data)
	case "pin_group_message":
		return h.pinGroupMessage(env.Data)
	case "add_group_member":
		return h.addGroupMember(env.Data)
	case "remove_group_member":
		return h.removeGroupMember(env.Data)
	case "set_group_admin":
		return h.setGroupAdmin(env.Data)
	case "add_group_reaction":
		return h.addGroupReaction(env.Data)
	case "group_typing":
		return h.groupTyping(env.Data)

	default:
		log.Printf("session: unknown command type %q", env.Type)
		return Result{}
	}
}

// bound reports the current user and whether a connection is bound; every
// command past login/register/check_username/search_user/heartbeat
// requires it and drops silently otherwise (spec.md §4.5, §7 Authorization
// class).
func (h *Handler) bound() (string, bool) {
	if h.currentUserID == "" {
		return "", false
	}
	return h.currentUserID, true
}

func decode(raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		log.Printf("session: bad payload: %v", err)
		return false
	}
	return true
}

// invalid logs a dropped command and returns the empty Result, satisfying
// spec.md §7's Validation class ("silently drop the command; log") for
// every required-field or cross-field check in commands.go -- decode
// itself already logs malformed JSON, this covers the rest.
func invalid(cmd, reason string) Result {
	log.Printf("session: %s: %s", cmd, reason)
	return Result{}
}
