package chat

import (
	"log"
	"sort"
	"sync"
)

// Store owns the Document and is the sole shared mutable resource in the
// process (spec.md §5). Every exported method takes the mutex, mutates the
// in-memory graph, flushes to disk, and returns the Outbound events the
// caller (internal/session, via internal/ws.Hub) must route. This mirrors
// the teacher's sqlstore.SQLStore shape -- one struct, one shared resource,
// one method per operation -- with a sync.Mutex standing in for the
// serialization a SQL driver gives for free.
type Store struct {
	mu   sync.Mutex
	doc  *Document
	path string
}

// NewStore loads path if it exists and parses; on any failure it starts
// from an empty document and logs, per spec.md §4.1.
func NewStore(path string) *Store {
	s := &Store{doc: newDocument(), path: path}
	doc, err := loadDocument(path)
	if err != nil {
		log.Printf("chat: starting from empty document: %v", err)
		return s
	}
	canonicalize(doc)
	s.doc = doc
	return s
}

// chatID is the lexicographic join used as the key into doc.Messages and
// as the wire chatId for direct messages (spec.md §3).
func chatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

func (s *Store) flush() {
	if err := saveDocument(s.path, s.doc); err != nil {
		// Transient per spec.md §7: log, keep the in-memory mutation, let
		// the next successful flush carry the latest state.
		log.Printf("chat: flush failed: %v", err)
	}
}

// --- read accessors: snapshot views, safe to call without further locking
// by the caller since each copies out from under the lock. ---

func (s *Store) GetUser(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Users)
}

func (s *Store) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.doc.Users {
		if u.IsOnline {
			n++
		}
	}
	return n
}

// OnlineUserIDs is the ordered set of currently-online user IDs, included
// verbatim in snapshot and presence events (spec.md §4.2).
func (s *Store) OnlineUserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0)
	for id, u := range s.doc.Users {
		if u.IsOnline {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Directory returns every user, deleted ones included (deleted users
// remain valid senders of historical messages, spec.md §3) with
// recovery-code hashes stripped, for the login/register snapshot (spec.md
// §4.5). The viewer's own record, with its hash intact, is handled
// separately by the session layer.
func (s *Store) Directory() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UserChatEndpoints(userID string) []ChatEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ChatEndpoint
	for _, ep := range s.doc.Chats[userID] {
		out = append(out, *ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartnerID < out[j].PartnerID })
	return out
}

func (s *Store) UserGroups(userID string) []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Group
	for _, g := range s.doc.Groups {
		if !g.IsDeleted && containsString(g.MemberIDs, userID) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DirectMessagesFor returns every message in every chat userID participates
// in, keyed by chatId, for the login/register snapshot.
func (s *Store) DirectMessagesFor(userID string) map[string][]DirectMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]DirectMessage)
	for id, ep := range s.doc.Chats[userID] {
		cid := chatID(userID, id)
		if _, ok := out[cid]; ok {
			continue
		}
		_ = ep
		out[cid] = copyDirectMessages(s.doc.Messages[cid])
	}
	return out
}

func copyDirectMessages(in []*DirectMessage) []DirectMessage {
	out := make([]DirectMessage, len(in))
	for i, m := range in {
		out[i] = *m
	}
	return out
}

func (s *Store) GroupMessagesFor(userID string) map[string][]GroupMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]GroupMessage)
	for gid, g := range s.doc.Groups {
		if !containsString(g.MemberIDs, userID) {
			continue
		}
		msgs := s.doc.GroupMessages[gid]
		copied := make([]GroupMessage, len(msgs))
		for i, m := range msgs {
			copied[i] = *m
		}
		out[gid] = copied
	}
	return out
}

func (s *Store) BlockedSets(userID string) (blocked, blockedBy []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.doc.Blocked[userID] {
		blocked = append(blocked, id)
	}
	for id := range s.doc.BlockedBy[userID] {
		blockedBy = append(blockedBy, id)
	}
	sort.Strings(blocked)
	sort.Strings(blockedBy)
	return
}

func (s *Store) PinnedChats(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.doc.PinnedChats[userID]...)
	return out
}

func (s *Store) PinnedMessagesMap(userID string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string)
	for cid, ids := range s.doc.PinnedMessages[userID] {
		out[cid] = append([]string(nil), ids...)
	}
	return out
}
