package chat

import (
	"strconv"
	"strings"
)

// SendMessage appends a message to the chat and returns the delivery
// events (spec.md §4.3). forwardedFrom is empty for a plain send; replyTo
// is forced empty by ForwardMessage before reaching here, matching the
// §9 note that send/forward differ only in that field.
func (s *Store) SendMessage(id, senderID, receiverID, text, replyTo, forwardedFrom string) (DirectMessage, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return DirectMessage{}, nil, ErrEmptyText
	}
	receiver, ok := s.doc.Users[receiverID]
	if !ok {
		return DirectMessage{}, nil, ErrUnknownUser
	}
	if receiver.IsDeleted {
		return DirectMessage{}, nil, ErrReceiverDeleted
	}
	if s.doc.isBlocked(receiverID, senderID) {
		return DirectMessage{}, nil, ErrBlocked
	}

	cid := chatID(senderID, receiverID)
	msg := &DirectMessage{
		ID: id, ChatID: cid, SenderID: senderID, ReceiverID: receiverID,
		Text: text, ReplyTo: replyTo, ForwardedFrom: forwardedFrom,
		Timestamp: now(), Status: StatusSent, Reactions: []Reaction{},
	}
	s.doc.Messages[cid] = append(s.doc.Messages[cid], msg)

	senderEP := s.doc.ensureChatEndpoint(senderID, receiverID)
	receiverEP := s.doc.ensureChatEndpoint(receiverID, senderID)
	senderEP.LastMessageID, senderEP.UpdatedAt = id, msg.Timestamp
	receiverEP.LastMessageID, receiverEP.UpdatedAt = id, msg.Timestamp
	receiverEP.UnreadCount++

	events := []Outbound{toUser(senderID, "message_sent", *msg)}
	if receiver.IsOnline {
		msg.Status = StatusDelivered
		events = append(events,
			toUser(receiverID, "new_message", *msg),
			toUser(senderID, "message_delivered", map[string]any{"messageId": id, "chatId": cid}),
		)
	}
	s.flush()
	return *msg, events, nil
}

// ForwardMessage is SendMessage with replyTo forced empty (spec.md §4.3).
func (s *Store) ForwardMessage(id, senderID, receiverID, text, forwardedFrom string) (DirectMessage, []Outbound, error) {
	return s.SendMessage(id, senderID, receiverID, text, "", forwardedFrom)
}

// EditMessage allows only the sender to change text (spec.md §4.3).
func (s *Store) EditMessage(chatID, messageID, actorID, newText string) (DirectMessage, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _ := s.doc.findMessage(chatID, messageID)
	if m == nil {
		return DirectMessage{}, nil, ErrUnknownMessage
	}
	if m.SenderID != actorID {
		return DirectMessage{}, nil, ErrNotSender
	}
	m.Text = newText
	m.IsEdited = true
	s.flush()
	return *m, []Outbound{
		toUser(m.SenderID, "message_edited", *m),
		toUser(m.ReceiverID, "message_edited", *m),
	}, nil
}

// DeleteMessage removes the listed messages from the chat and from both
// participants' pinned lists. Authorization is sender-only; spec.md §9
// documents that the source has no check at all, but §4.3's operation
// contract (this spec's binding behavior) names sender-only explicitly.
func (s *Store) DeleteMessage(cid string, messageIDs []string, actorID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []string
	remaining := s.doc.Messages[cid][:0:0]
	for _, m := range s.doc.Messages[cid] {
		if containsString(messageIDs, m.ID) && m.SenderID == actorID {
			deleted = append(deleted, m.ID)
			continue
		}
		remaining = append(remaining, m)
	}
	s.doc.Messages[cid] = remaining
	if len(deleted) == 0 {
		return nil, nil
	}

	participants := chatParticipants(cid)
	for _, uid := range participants {
		ids := s.doc.ensurePinnedMessages(uid, cid)
		for _, d := range deleted {
			ids = removeString(ids, d)
		}
		s.doc.setPinnedMessages(uid, cid, ids)
	}
	s.flush()

	events := make([]Outbound, 0, len(participants))
	for _, uid := range participants {
		events = append(events, toUser(uid, "message_deleted", map[string]any{
			"chatId":         cid,
			"messageIds":     deleted,
			"pinnedMessages": s.doc.PinnedMessages[uid][cid],
		}))
	}
	return events, nil
}

// MarkSeen sweeps every message addressed to userID in the chat to seen
// and zeroes their unread count (spec.md §4.3).
func (s *Store) MarkSeen(cid, userID, partnerID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, m := range s.doc.Messages[cid] {
		if m.ReceiverID == userID && m.Status != StatusSeen {
			m.Status = StatusSeen
			changed = true
		}
	}
	if ep, ok := s.doc.Chats[userID][partnerID]; ok {
		ep.UnreadCount = 0
	}
	if !changed {
		return nil, nil
	}
	s.flush()
	return []Outbound{
		toUser(partnerID, "messages_seen", map[string]any{"chatId": cid, "userId": userID}),
		toUser(userID, "unread_cleared", map[string]any{"chatId": cid, "partnerId": partnerID}),
	}, nil
}

// MarkMessagesSeen transitions only the listed messages, per spec.md
// §4.3 and §8's "empty list is a no-op" boundary case.
func (s *Store) MarkMessagesSeen(cid, userID, partnerID string, messageIDs []string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var transitioned []string
	for _, m := range s.doc.Messages[cid] {
		if containsString(messageIDs, m.ID) && m.ReceiverID == userID && m.Status != StatusSeen {
			m.Status = StatusSeen
			transitioned = append(transitioned, m.ID)
		}
	}
	if len(transitioned) == 0 {
		return nil, nil
	}
	if ep, ok := s.doc.Chats[userID][partnerID]; ok {
		ep.UnreadCount -= len(transitioned)
		if ep.UnreadCount < 0 {
			ep.UnreadCount = 0
		}
	}
	s.flush()
	return []Outbound{
		toUser(partnerID, "specific_messages_seen", map[string]any{"chatId": cid, "messageIds": transitioned}),
		toUser(userID, "chat_unread_updated", map[string]any{"chatId": cid, "partnerId": partnerID, "unreadCount": s.doc.Chats[userID][partnerID].UnreadCount}),
	}, nil
}

// PinMessage mirrors the pinned-message id into both participants' lists
// and, unless this is a self-chat, synthesizes a system message (spec.md
// §4.3, §8 "self-chat pin does NOT create a system message").
func (s *Store) PinMessage(cid, messageID, actorID, actorDisplayName string, isPinned bool) ([]Outbound, *DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, _ := s.doc.findMessage(cid, messageID); m == nil {
		return nil, nil, ErrUnknownMessage
	}

	participants := chatParticipants(cid)
	selfChat := len(participants) == 1
	parts := splitChatID(cid)
	a, b := parts[0], parts[1]
	other := b
	if actorID == b {
		other = a
	}

	for _, uid := range participants {
		ids := s.doc.ensurePinnedMessages(uid, cid)
		if isPinned {
			ids = appendUnique(ids, messageID)
		} else {
			ids = removeString(ids, messageID)
		}
		s.doc.setPinnedMessages(uid, cid, ids)
	}

	var system *DirectMessage
	events := make([]Outbound, 0, len(participants)+1)
	if isPinned && !selfChat {
		ts := now()
		system = &DirectMessage{
			ID: "sys-" + messageID + "-pin-" + strconv.FormatInt(ts, 10), ChatID: cid, SenderID: actorID, ReceiverID: other,
			Text: actorDisplayName + " pinned a message", Timestamp: ts,
			Status: StatusSent, IsSystem: true, Reactions: []Reaction{},
		}
		s.doc.Messages[cid] = append(s.doc.Messages[cid], system)
		events = append(events, toUser(other, "new_message", *system))
	}
	for _, uid := range participants {
		events = append(events, toUser(uid, "message_pinned", map[string]any{
			"chatId":         cid,
			"messageId":      messageID,
			"isPinned":       isPinned,
			"pinnedMessages": s.doc.PinnedMessages[uid][cid],
		}))
	}
	s.flush()
	return events, system, nil
}

// AddReaction toggles off an identical (userID, emoji) pair, otherwise
// replaces any prior reaction by userID on the message (spec.md §4.3, §8
// scenario 2).
func (s *Store) AddReaction(cid, messageID, userID, emoji string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _ := s.doc.findMessage(cid, messageID)
	if m == nil {
		return nil, ErrUnknownMessage
	}
	m.Reactions = toggleReaction(m.Reactions, userID, emoji)
	s.flush()

	var events []Outbound
	for _, uid := range chatParticipants(cid) {
		events = append(events, toUser(uid, "reaction_updated", map[string]any{"chatId": cid, "messageId": messageID, "reactions": m.Reactions}))
	}
	return events, nil
}

func toggleReaction(reactions []Reaction, userID, emoji string) []Reaction {
	for i, r := range reactions {
		if r.UserID == userID {
			if r.Emoji == emoji {
				return append(reactions[:i], reactions[i+1:]...)
			}
			out := append(reactions[:i:i], reactions[i+1:]...)
			return append(out, Reaction{UserID: userID, Emoji: emoji})
		}
	}
	return append(reactions, Reaction{UserID: userID, Emoji: emoji})
}

// PinChat toggles partnerID in userID's ordered pinned-chats set.
func (s *Store) PinChat(userID, partnerID string, isPinned bool) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.doc.PinnedChats[userID]
	if isPinned {
		ids = appendUnique(ids, partnerID)
	} else {
		ids = removeString(ids, partnerID)
	}
	s.doc.PinnedChats[userID] = ids
	s.flush()
	return []Outbound{toUser(userID, "chat_pinned", map[string]any{"partnerId": partnerID, "isPinned": isPinned, "pinnedChats": ids})}, nil
}

// DeleteChat removes userID's view of the chat endpoint with partnerID.
// This only clears the owner's own endpoint and pinned-chat entry; the
// messages themselves (and the partner's endpoint) are untouched, since
// the spec gives the partner no reason to lose their own history.
func (s *Store) DeleteChat(userID, partnerID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Chats[userID], partnerID)
	s.doc.PinnedChats[userID] = removeString(s.doc.PinnedChats[userID], partnerID)
	s.flush()
	return []Outbound{toUser(userID, "chat_deleted", map[string]any{"partnerId": partnerID})}, nil
}

// Typing is a stateless forward, no persistence (spec.md §4.3).
func (s *Store) Typing(userID, partnerID string, isTyping bool) []Outbound {
	return []Outbound{toUser(partnerID, "user_typing", map[string]any{"userId": userID, "isTyping": isTyping})}
}
