package session

import (
	"log"

	"github.com/pliu/chattycore/internal/chat"
)

// snapshot is the full per-user state scoped payload register_success and
// login_success carry (spec.md §4.5): the viewer's own record, the user
// directory (recovery codes stripped by chat.User.Public, applied to every
// entry including the viewer's own -- the plaintext code below is the only
// form of it ever sent, and only at registration), that user's chat
// endpoints, groups, messages, block sets, pinned state, and who else is
// online.
type snapshot struct {
	User           chat.User                       `json:"user"`
	RecoveryCode   string                           `json:"recoveryCode,omitempty"`
	Users          []chat.User                      `json:"users"`
	Chats          []chat.ChatEndpoint              `json:"chats"`
	Groups         []chat.Group                     `json:"groups"`
	Messages       map[string][]chat.DirectMessage  `json:"messages"`
	GroupMessages  map[string][]chat.GroupMessage   `json:"groupMessages"`
	Blocked        []string                         `json:"blocked"`
	BlockedBy      []string                         `json:"blockedBy"`
	PinnedChats    []string                         `json:"pinnedChats"`
	PinnedMessages map[string][]string              `json:"pinnedMessages"`
	OnlineUserIDs  []string                         `json:"onlineUserIds"`
}

func (h *Handler) buildSnapshot(u chat.User, recoveryCode string) snapshot {
	blocked, blockedBy := h.store.BlockedSets(u.ID)
	return snapshot{
		User:           u.Public(),
		RecoveryCode:   recoveryCode,
		Users:          h.store.Directory(),
		Chats:          h.store.UserChatEndpoints(u.ID),
		Groups:         h.store.UserGroups(u.ID),
		Messages:       h.store.DirectMessagesFor(u.ID),
		GroupMessages:  h.store.GroupMessagesFor(u.ID),
		Blocked:        blocked,
		BlockedBy:      blockedBy,
		PinnedChats:    h.store.PinnedChats(u.ID),
		PinnedMessages: h.store.PinnedMessagesMap(u.ID),
		OnlineUserIDs:  h.store.OnlineUserIDs(),
	}
}

// bindAndSnapshot is shared by register/login/login_recovery: once the
// Store confirms the identity, it promotes the connection to bound
// (spec.md §4.2's presence + delivery-catch-up) and assembles the scoped
// snapshot the session layer sends back directly.
func (h *Handler) bindAndSnapshot(u chat.User, recoveryCode, successEvent string) Result {
	presence, err := h.store.Bind(u.ID)
	if err != nil {
		log.Printf("session: bind %s: %v", u.ID, err)
		return Result{}
	}
	h.currentUserID = u.ID
	snap := h.buildSnapshot(u, recoveryCode)
	return Result{
		Bound:  u.ID,
		Direct: []chat.Event{{Type: successEvent, Data: snap}},
		Routed: presence,
	}
}
