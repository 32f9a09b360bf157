package chat

import "strings"

// CreateGroup dedupes and filters memberIDs to live users, always
// includes the actor, and makes the actor the creator and sole initial
// admin (spec.md §4.4).
func (s *Store) CreateGroup(id, name, description, avatar, actorID string, memberIDs []string) (Group, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Groups[id]; exists {
		return Group{}, nil, ErrUnknownGroup
	}

	seen := map[string]bool{actorID: true}
	members := []string{actorID}
	for _, m := range memberIDs {
		if seen[m] {
			continue
		}
		u, ok := s.doc.Users[m]
		if !ok || u.IsDeleted {
			continue
		}
		seen[m] = true
		members = append(members, m)
	}

	g := newGroup(id, name, description, avatar, actorID, members)
	g.CreatedAt = now()
	for _, m := range members {
		g.UnreadCounts[m] = 0
	}
	s.doc.Groups[id] = g
	s.flush()

	events := make([]Outbound, 0, len(members))
	for _, m := range members {
		events = append(events, toUser(m, "group_created", *g))
	}
	return *g, events, nil
}

func (s *Store) group(groupID string) (*Group, error) {
	g, ok := s.doc.Groups[groupID]
	if !ok || g.IsDeleted {
		return nil, ErrUnknownGroup
	}
	return g, nil
}

func isAdmin(g *Group, userID string) bool {
	return containsString(g.Admins, userID)
}

// sendGroupMessage is the shared implementation behind SendGroupMessage
// and ForwardGroupMessage -- spec.md §9 notes the two differ only in
// whether replyTo is allowed, so they share one method with two entry
// points below.
func (s *Store) sendGroupMessage(id, groupID, senderID, text, replyTo, forwardedFrom string) (GroupMessage, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return GroupMessage{}, nil, ErrEmptyText
	}
	g, err := s.group(groupID)
	if err != nil {
		return GroupMessage{}, nil, err
	}
	if !containsString(g.MemberIDs, senderID) {
		return GroupMessage{}, nil, ErrNotMember
	}

	msg := &GroupMessage{
		ID: id, GroupID: groupID, SenderID: senderID, Text: text,
		ReplyTo: replyTo, ForwardedFrom: forwardedFrom, Timestamp: now(),
		Reactions: []Reaction{}, SeenBy: []string{senderID},
	}
	s.doc.GroupMessages[groupID] = append(s.doc.GroupMessages[groupID], msg)
	g.LastMessageID = id
	for _, m := range g.MemberIDs {
		if m == senderID {
			g.UnreadCounts[m] = 0
			continue
		}
		g.UnreadCounts[m]++
	}
	s.flush()

	events := []Outbound{toUser(senderID, "group_message_sent", *msg)}
	for _, m := range g.MemberIDs {
		if m != senderID {
			events = append(events, toUser(m, "new_group_message", *msg))
		}
	}
	return *msg, events, nil
}

// SendGroupMessage appends a group message with an optional replyTo and no
// forwardedFrom.
func (s *Store) SendGroupMessage(id, groupID, senderID, text, replyTo string) (GroupMessage, []Outbound, error) {
	return s.sendGroupMessage(id, groupID, senderID, text, replyTo, "")
}

// ForwardGroupMessage appends a group message carrying forwardedFrom,
// replyTo forced empty.
func (s *Store) ForwardGroupMessage(id, groupID, senderID, text, forwardedFrom string) (GroupMessage, []Outbound, error) {
	return s.sendGroupMessage(id, groupID, senderID, text, "", forwardedFrom)
}

// MarkGroupSeen appends userID to seenBy on every non-system message not
// already seen by them, zeroes their unread counter (spec.md §4.4).
func (s *Store) MarkGroupSeen(groupID, userID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	var transitioned []string
	for _, m := range s.doc.GroupMessages[groupID] {
		if m.IsSystem || m.SenderID == userID || containsString(m.SeenBy, userID) {
			continue
		}
		m.SeenBy = append(m.SeenBy, userID)
		transitioned = append(transitioned, m.ID)
	}
	g.UnreadCounts[userID] = 0
	s.flush()

	events := []Outbound{toUser(userID, "group_unread_updated", map[string]any{"groupId": groupID, "unreadCount": 0})}
	if len(transitioned) > 0 {
		for _, m := range g.MemberIDs {
			events = append(events, toUser(m, "group_messages_seen", map[string]any{"groupId": groupID, "userId": userID, "messageIds": transitioned}))
		}
	}
	return events, nil
}

// MarkGroupMessagesSeen is the selective variant of MarkGroupSeen.
func (s *Store) MarkGroupMessagesSeen(groupID, userID string, messageIDs []string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(messageIDs) == 0 {
		return nil, nil
	}
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	var transitioned []string
	for _, m := range s.doc.GroupMessages[groupID] {
		if !containsString(messageIDs, m.ID) || m.IsSystem || m.SenderID == userID || containsString(m.SeenBy, userID) {
			continue
		}
		m.SeenBy = append(m.SeenBy, userID)
		transitioned = append(transitioned, m.ID)
	}
	if len(transitioned) == 0 {
		return nil, nil
	}
	g.UnreadCounts[userID] -= len(transitioned)
	if g.UnreadCounts[userID] < 0 {
		g.UnreadCounts[userID] = 0
	}
	s.flush()
	return []Outbound{toUser(userID, "group_unread_updated", map[string]any{"groupId": groupID, "unreadCount": g.UnreadCounts[userID]})}, nil
}

// EditGroupMessage: sender only.
func (s *Store) EditGroupMessage(groupID, messageID, actorID, newText string) (GroupMessage, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return GroupMessage{}, nil, err
	}
	m, _ := s.doc.findGroupMessage(groupID, messageID)
	if m == nil {
		return GroupMessage{}, nil, ErrUnknownMessage
	}
	if m.SenderID != actorID {
		return GroupMessage{}, nil, ErrNotSender
	}
	m.Text = newText
	m.IsEdited = true
	s.flush()

	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		events = append(events, toUser(uid, "group_message_edited", *m))
	}
	return *m, events, nil
}

// DeleteGroupMessage: sender or any admin.
func (s *Store) DeleteGroupMessage(groupID, messageID, actorID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	m, _ := s.doc.findGroupMessage(groupID, messageID)
	if m == nil {
		return nil, ErrUnknownMessage
	}
	if m.SenderID != actorID && !isAdmin(g, actorID) {
		return nil, ErrNotAdmin
	}
	var remaining []*GroupMessage
	for _, msg := range s.doc.GroupMessages[groupID] {
		if msg.ID != messageID {
			remaining = append(remaining, msg)
		}
	}
	s.doc.GroupMessages[groupID] = remaining
	g.PinnedMessageIDs = removeString(g.PinnedMessageIDs, messageID)
	s.flush()

	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		events = append(events, toUser(uid, "group_message_deleted", map[string]any{"groupId": groupID, "messageId": messageID}))
	}
	return events, nil
}

// PinGroupMessage: admin or creator only, maintains an insertion-ordered
// set (spec.md §4.4).
func (s *Store) PinGroupMessage(groupID, messageID, actorID string, isPinned bool) (Group, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return Group{}, nil, err
	}
	if !isAdmin(g, actorID) {
		return Group{}, nil, ErrNotAdmin
	}
	if isPinned {
		g.PinnedMessageIDs = appendUnique(g.PinnedMessageIDs, messageID)
	} else {
		g.PinnedMessageIDs = removeString(g.PinnedMessageIDs, messageID)
	}
	s.flush()

	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		events = append(events, toUser(uid, "group_message_pinned", *g))
	}
	return *g, events, nil
}

// AddGroupMember: creator or admin only.
func (s *Store) AddGroupMember(groupID, memberID, actorID string) (Group, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return Group{}, nil, err
	}
	if !isAdmin(g, actorID) {
		return Group{}, nil, ErrNotAdmin
	}
	u, ok := s.doc.Users[memberID]
	if !ok || u.IsDeleted {
		return Group{}, nil, ErrUnknownUser
	}
	if containsString(g.MemberIDs, memberID) {
		return *g, nil, nil
	}
	g.MemberIDs = append(g.MemberIDs, memberID)
	g.UnreadCounts[memberID] = 0
	s.flush()

	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		events = append(events, toUser(uid, "group_updated", *g))
	}
	return *g, events, nil
}

// RemoveGroupMember: creator or admin only; the creator can never be
// removed. If removal leaves the creator as the sole remaining member, the
// group dissolves implicitly -- leaving is not supported for the creator,
// so becoming sole member is the only way a creator exits (spec.md §3).
func (s *Store) RemoveGroupMember(groupID, memberID, actorID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(g, actorID) {
		return nil, ErrNotAdmin
	}
	if memberID == g.CreatorID {
		return nil, ErrCreatorImmutable
	}
	if !containsString(g.MemberIDs, memberID) {
		return nil, ErrNotMember
	}
	remaining := g.MemberIDs
	g.MemberIDs = removeString(g.MemberIDs, memberID)
	g.Admins = removeString(g.Admins, memberID)
	delete(g.UnreadCounts, memberID)

	dissolved := len(g.MemberIDs) == 1 && g.MemberIDs[0] == g.CreatorID
	if dissolved {
		g.IsDeleted = true
	}
	s.flush()

	events := make([]Outbound, 0, len(remaining))
	for _, uid := range remaining {
		if uid == memberID {
			events = append(events, toUser(uid, "group_updated", nil))
			continue
		}
		if dissolved {
			events = append(events, toUser(uid, "group_updated", nil))
			continue
		}
		events = append(events, toUser(uid, "group_updated", *g))
	}
	return events, nil
}

// SetGroupAdmin: creator or admin only; the creator cannot be demoted.
func (s *Store) SetGroupAdmin(groupID, memberID, actorID string, isAdminFlag bool) (Group, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return Group{}, nil, err
	}
	if !isAdmin(g, actorID) {
		return Group{}, nil, ErrNotAdmin
	}
	if !containsString(g.MemberIDs, memberID) {
		return Group{}, nil, ErrNotMember
	}
	if memberID == g.CreatorID && !isAdminFlag {
		return Group{}, nil, ErrCreatorImmutable
	}
	if isAdminFlag {
		g.Admins = appendUnique(g.Admins, memberID)
	} else {
		g.Admins = removeString(g.Admins, memberID)
	}
	s.flush()

	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		events = append(events, toUser(uid, "group_updated", *g))
	}
	return *g, events, nil
}

// AddGroupReaction has the same toggle/replace semantics as AddReaction.
func (s *Store) AddGroupReaction(groupID, messageID, userID, emoji string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	m, _ := s.doc.findGroupMessage(groupID, messageID)
	if m == nil {
		return nil, ErrUnknownMessage
	}
	m.Reactions = toggleReaction(m.Reactions, userID, emoji)
	s.flush()

	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		events = append(events, toUser(uid, "group_reaction_updated", map[string]any{"groupId": groupID, "messageId": messageID, "reactions": m.Reactions}))
	}
	return events, nil
}

// GroupTyping is a stateless forward to every member except the typer.
func (s *Store) GroupTyping(groupID, userID string, isTyping bool) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil
	}
	events := make([]Outbound, 0, len(g.MemberIDs))
	for _, uid := range g.MemberIDs {
		if uid == userID {
			continue
		}
		events = append(events, toUser(uid, "group_user_typing", map[string]any{"groupId": groupID, "userId": userID, "isTyping": isTyping}))
	}
	return events
}
