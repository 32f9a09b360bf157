package chat

import (
	"bytes"
	"encoding/json"
	"sort"
)

// reactionWire accepts either field name for the reacting user, per
// spec.md §9's oderId/userId field-name-drift note: read either, always
// write userId (model.go's Reaction tag).
type reactionWire struct {
	UserID string `json:"userId"`
	OderID string `json:"oderId"`
	Emoji  string `json:"emoji"`
}

// parseReactionsField accepts the canonical array-of-object form or the
// legacy userId->emoji map form (spec.md §9's reaction-schema-drift note)
// and always returns the canonical array form.
func parseReactionsField(raw json.RawMessage) ([]Reaction, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var wire []reactionWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		out := make([]Reaction, len(wire))
		for i, w := range wire {
			out[i] = Reaction{UserID: firstNonEmpty(w.UserID, w.OderID), Emoji: w.Emoji}
		}
		return out, nil
	}
	// legacy map form: userId -> emoji
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := make([]Reaction, 0, len(m))
	for uid, emoji := range m {
		out = append(out, Reaction{UserID: uid, Emoji: emoji})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// directMessageWire mirrors DirectMessage but leaves Reactions raw so
// UnmarshalJSON can canonicalize either schema.
type directMessageWire struct {
	ID            string          `json:"id"`
	ChatID        string          `json:"chatId"`
	SenderID      string          `json:"senderId"`
	ReceiverID    string          `json:"receiverId"`
	Text          string          `json:"text"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	ForwardedFrom string          `json:"forwardedFrom,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	Status        MessageStatus   `json:"status"`
	IsEdited      bool            `json:"isEdited"`
	IsDeleted     bool            `json:"isDeleted"`
	IsSystem      bool            `json:"isSystem"`
	Reactions     json.RawMessage `json:"reactions"`
}

func (m *DirectMessage) UnmarshalJSON(data []byte) error {
	var w directMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	reactions, err := parseReactionsField(w.Reactions)
	if err != nil {
		return err
	}
	*m = DirectMessage{
		ID: w.ID, ChatID: w.ChatID, SenderID: w.SenderID, ReceiverID: w.ReceiverID,
		Text: w.Text, ReplyTo: w.ReplyTo, ForwardedFrom: w.ForwardedFrom,
		Timestamp: w.Timestamp, Status: w.Status, IsEdited: w.IsEdited,
		IsDeleted: w.IsDeleted, IsSystem: w.IsSystem, Reactions: reactions,
	}
	return nil
}

type groupMessageWire struct {
	ID            string          `json:"id"`
	GroupID       string          `json:"groupId"`
	SenderID      string          `json:"senderId"`
	Text          string          `json:"text"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	ForwardedFrom string          `json:"forwardedFrom,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	Reactions     json.RawMessage `json:"reactions"`
	SeenBy        []string        `json:"seenBy"`
	IsEdited      bool            `json:"isEdited"`
	IsDeleted     bool            `json:"isDeleted"`
	IsSystem      bool            `json:"isSystem"`
}

func (m *GroupMessage) UnmarshalJSON(data []byte) error {
	var w groupMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	reactions, err := parseReactionsField(w.Reactions)
	if err != nil {
		return err
	}
	*m = GroupMessage{
		ID: w.ID, GroupID: w.GroupID, SenderID: w.SenderID, Text: w.Text,
		ReplyTo: w.ReplyTo, ForwardedFrom: w.ForwardedFrom, Timestamp: w.Timestamp,
		Reactions: reactions, SeenBy: w.SeenBy, IsEdited: w.IsEdited,
		IsDeleted: w.IsDeleted, IsSystem: w.IsSystem,
	}
	return nil
}

// canonicalize repairs a freshly-loaded Document: nil top-level maps
// (explicit JSON null, or a key absent from an older document) become
// empty maps, and ad-hoc nullable group fields (spec.md §9:
// unreadCounts/admins accreted onto Group over versions) are initialized
// rather than read with a defensive `|| default` at every call site.
func canonicalize(doc *Document) {
	if doc.Users == nil {
		doc.Users = make(map[string]*User)
	}
	if doc.Messages == nil {
		doc.Messages = make(map[string][]*DirectMessage)
	}
	if doc.Chats == nil {
		doc.Chats = make(map[string]map[string]*ChatEndpoint)
	}
	if doc.Groups == nil {
		doc.Groups = make(map[string]*Group)
	}
	if doc.GroupMessages == nil {
		doc.GroupMessages = make(map[string][]*GroupMessage)
	}
	if doc.Blocked == nil {
		doc.Blocked = make(map[string]map[string]bool)
	}
	if doc.BlockedBy == nil {
		doc.BlockedBy = make(map[string]map[string]bool)
	}
	if doc.PinnedChats == nil {
		doc.PinnedChats = make(map[string][]string)
	}
	if doc.PinnedMessages == nil {
		doc.PinnedMessages = make(map[string]map[string][]string)
	}
	for _, g := range doc.Groups {
		if g.UnreadCounts == nil {
			g.UnreadCounts = make(map[string]int)
		}
		if g.Admins == nil {
			g.Admins = []string{g.CreatorID}
		} else if !containsString(g.Admins, g.CreatorID) {
			g.Admins = append(g.Admins, g.CreatorID)
		}
		if g.PinnedMessageIDs == nil {
			g.PinnedMessageIDs = []string{}
		}
	}
}
