// Package chat owns the in-memory state graph of the hub: users, direct
// chats, groups, messages, reactions, pins, and blocks. It is the single
// shared mutable resource in the process; every mutator takes the Store's
// lock itself and returns the outbound events the router must deliver.
package chat

// MessageStatus is the lifecycle state of a direct message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

// User is a registered identity. RecoveryCodeHash is never serialized to
// any outbound event; only the Document's on-disk JSON carries it.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	DisplayName      string `json:"displayName"`
	Avatar           string `json:"avatar"`
	Bio              string `json:"bio"`
	IsOnline         bool   `json:"isOnline"`
	LastSeen         int64  `json:"lastSeen"`
	IsDeleted        bool   `json:"isDeleted"`
	RecoveryCodeHash string `json:"recoveryCodeHash"`
}

// Public returns a copy with the recovery code hash stripped, fit for any
// outbound event (spec.md §6 privacy rule).
func (u User) Public() User {
	u.RecoveryCodeHash = ""
	return u
}

// ChatEndpoint is one participant's view of a direct chat.
type ChatEndpoint struct {
	OwnerID       string `json:"ownerId"`
	PartnerID     string `json:"partnerId"`
	LastMessageID string `json:"lastMessageId,omitempty"`
	UnreadCount   int    `json:"unreadCount"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Reaction is one user's emoji on one message. A user has at most one
// reaction per message (enforced by the mutators, not by this type).
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// DirectMessage is one message inside a two-party chat, keyed by ChatID
// (the sorted "a:b" join) and its own ID within that chat.
type DirectMessage struct {
	ID            string        `json:"id"`
	ChatID        string        `json:"chatId"`
	SenderID      string        `json:"senderId"`
	ReceiverID    string        `json:"receiverId"`
	Text          string        `json:"text"`
	ReplyTo       string        `json:"replyTo,omitempty"`
	ForwardedFrom string        `json:"forwardedFrom,omitempty"`
	Timestamp     int64         `json:"timestamp"`
	Status        MessageStatus `json:"status"`
	IsEdited      bool          `json:"isEdited"`
	IsDeleted     bool          `json:"isDeleted"`
	IsSystem      bool          `json:"isSystem"`
	Reactions     []Reaction    `json:"reactions"`
}

// Group is a multi-party conversation with explicit membership.
type Group struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Avatar           string         `json:"avatar"`
	CreatorID        string         `json:"creatorId"`
	MemberIDs        []string       `json:"memberIds"`
	Admins           []string       `json:"admins"`
	CreatedAt        int64          `json:"createdAt"`
	IsDeleted        bool           `json:"isDeleted"`
	UnreadCounts     map[string]int `json:"unreadCounts"`
	PinnedMessageIDs []string       `json:"pinnedMessageIds"`
	LastMessageID    string         `json:"lastMessageId,omitempty"`
}

// GroupMessage is one message inside a group.
type GroupMessage struct {
	ID            string     `json:"id"`
	GroupID       string     `json:"groupId"`
	SenderID      string     `json:"senderId"`
	Text          string     `json:"text"`
	ReplyTo       string     `json:"replyTo,omitempty"`
	ForwardedFrom string     `json:"forwardedFrom,omitempty"`
	Timestamp     int64      `json:"timestamp"`
	Reactions     []Reaction `json:"reactions"`
	SeenBy        []string   `json:"seenBy"`
	IsEdited      bool       `json:"isEdited"`
	IsDeleted     bool       `json:"isDeleted"`
	IsSystem      bool       `json:"isSystem"`
}

func newUser(id, username string) *User {
	return &User{ID: id, Username: username}
}

func newGroup(id, name, description, avatar, creatorID string, members []string) *Group {
	return &Group{
		ID:               id,
		Name:             name,
		Description:      description,
		Avatar:           avatar,
		CreatorID:        creatorID,
		MemberIDs:        members,
		Admins:           []string{creatorID},
		UnreadCounts:     make(map[string]int, len(members)),
		PinnedMessageIDs: []string{},
	}
}
