package chat

import "strings"

// Document is the persisted state graph, §3 of the spec verbatim: top-level
// maps keyed the way the wire format and the on-disk JSON both expect.
// Missing keys on load are tolerated and treated as empty (spec.md §6).
type Document struct {
	Users          map[string]*User                    `json:"users"`
	Messages       map[string][]*DirectMessage          `json:"messages"`
	Chats          map[string]map[string]*ChatEndpoint  `json:"chats"`
	Groups         map[string]*Group                    `json:"groups"`
	GroupMessages  map[string][]*GroupMessage           `json:"groupMessages"`
	Blocked        map[string]map[string]bool           `json:"blocked"`
	BlockedBy      map[string]map[string]bool           `json:"blockedBy"`
	PinnedChats    map[string][]string                  `json:"pinnedChats"`
	PinnedMessages map[string]map[string][]string        `json:"pinnedMessages"`
}

func newDocument() *Document {
	return &Document{
		Users:          make(map[string]*User),
		Messages:       make(map[string][]*DirectMessage),
		Chats:          make(map[string]map[string]*ChatEndpoint),
		Groups:         make(map[string]*Group),
		GroupMessages:  make(map[string][]*GroupMessage),
		Blocked:        make(map[string]map[string]bool),
		BlockedBy:      make(map[string]map[string]bool),
		PinnedChats:    make(map[string][]string),
		PinnedMessages: make(map[string]map[string][]string),
	}
}

// ensure* helpers keep the "initialize at construction, never read a nil
// map" posture spec.md §9 asks for instead of the source's defensive
// `field || default` reads.

func (d *Document) ensureChatEndpoint(owner, partner string) *ChatEndpoint {
	if d.Chats[owner] == nil {
		d.Chats[owner] = make(map[string]*ChatEndpoint)
	}
	ep, ok := d.Chats[owner][partner]
	if !ok {
		ep = &ChatEndpoint{OwnerID: owner, PartnerID: partner}
		d.Chats[owner][partner] = ep
	}
	return ep
}

func (d *Document) ensurePinnedMessages(userID, chatID string) []string {
	if d.PinnedMessages[userID] == nil {
		d.PinnedMessages[userID] = make(map[string][]string)
	}
	return d.PinnedMessages[userID][chatID]
}

func (d *Document) setPinnedMessages(userID, chatID string, ids []string) {
	if d.PinnedMessages[userID] == nil {
		d.PinnedMessages[userID] = make(map[string][]string)
	}
	d.PinnedMessages[userID][chatID] = ids
}

func (d *Document) isBlocked(blocker, blocked string) bool {
	return d.Blocked[blocker][blocked]
}

func (d *Document) block(blocker, blocked string) {
	if d.Blocked[blocker] == nil {
		d.Blocked[blocker] = make(map[string]bool)
	}
	d.Blocked[blocker][blocked] = true
	if d.BlockedBy[blocked] == nil {
		d.BlockedBy[blocked] = make(map[string]bool)
	}
	d.BlockedBy[blocked][blocker] = true
}

func (d *Document) findMessage(chatID, messageID string) (*DirectMessage, int) {
	for i, m := range d.Messages[chatID] {
		if m.ID == messageID {
			return m, i
		}
	}
	return nil, -1
}

func (d *Document) findGroupMessage(groupID, messageID string) (*GroupMessage, int) {
	for i, m := range d.GroupMessages[groupID] {
		if m.ID == messageID {
			return m, i
		}
	}
	return nil, -1
}

// chatParticipants splits a chatID into its one or two distinct member
// IDs -- one for a self-chat ("id:id"), otherwise two.
func chatParticipants(cid string) []string {
	parts := splitChatID(cid)
	if parts[0] == parts[1] {
		return parts[:1]
	}
	return parts[:]
}

func splitChatID(cid string) [2]string {
	a, b, ok := strings.Cut(cid, ":")
	if !ok {
		return [2]string{cid, cid}
	}
	return [2]string{a, b}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if containsString(list, s) {
		return list
	}
	return append(list, s)
}
