package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/pliu/chattycore/internal/auth"
)

func now() int64 {
	return time.Now().UnixMilli()
}

// usernameTaken reports whether username collides case-insensitively with
// any non-deleted user.
func (s *Store) usernameTaken(username string) bool {
	lower := strings.ToLower(username)
	for _, u := range s.doc.Users {
		if !u.IsDeleted && strings.ToLower(u.Username) == lower {
			return true
		}
	}
	return false
}

// Register creates a new user and a fresh recovery code. The plaintext
// code is returned only to the caller, once, for inclusion in the owner's
// register_success payload (spec.md §6 privacy rule); it is never stored.
func (s *Store) Register(id, username string) (User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Users[id]; exists {
		return User{}, "", ErrUsernameTaken
	}
	if s.usernameTaken(username) {
		return User{}, "", ErrUsernameTaken
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return User{}, "", err
	}
	hash, err := auth.Hash(auth.Normalize(code))
	if err != nil {
		return User{}, "", err
	}

	u := newUser(id, username)
	u.DisplayName = username
	u.RecoveryCodeHash = hash
	s.doc.Users[id] = u
	s.flush()
	return *u, code, nil
}

// CheckUsername reports whether username is free to register.
func (s *Store) CheckUsername(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.usernameTaken(username)
}

// SearchUser returns non-deleted users whose username or display name
// contains query, case-insensitively.
func (s *Store) SearchUser(query string) []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []User
	for _, u := range s.doc.Users {
		if u.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			out = append(out, u.Public())
		}
	}
	return out
}

// Login looks up an existing, non-deleted user by ID. spec.md §1's only
// authentication factor is the recovery code (§4.6); a plain login trusts
// the client-supplied ID, the same trust model the source uses for every
// command's embedded identity.
func (s *Store) Login(userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[userID]
	if !ok || u.IsDeleted {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// LoginRecovery normalizes code and returns the first non-deleted user
// whose stored hash matches (spec.md §4.6).
func (s *Store) LoginRecovery(code string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := auth.Normalize(code)
	ids := make([]string, 0, len(s.doc.Users))
	for id := range s.doc.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := s.doc.Users[id]
		if u.IsDeleted {
			continue
		}
		if auth.Verify(u.RecoveryCodeHash, normalized) {
			return *u, nil
		}
	}
	return User{}, ErrInvalidRecovery
}

// UpdateProfile overwrites only the non-nil fields. The recovery code is
// untouched by design -- spec.md §8 requires it survive any number of
// profile updates.
func (s *Store) UpdateProfile(userID string, displayName, avatar, bio *string) (User, []Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[userID]
	if !ok || u.IsDeleted {
		return User{}, nil, ErrUserNotFound
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if avatar != nil {
		u.Avatar = *avatar
	}
	if bio != nil {
		u.Bio = *bio
	}
	s.flush()
	events := []Outbound{
		toUser(userID, "profile_updated", u.Public()),
		broadcastExceptUser(userID, "user_updated", u.Public()),
	}
	return *u, events, nil
}

// DeleteAccount soft-deletes the user: spec.md §3, "a deleted user is not
// purged; their id remains valid as a sender of historical messages."
func (s *Store) DeleteAccount(userID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[userID]
	if !ok || u.IsDeleted {
		return nil, ErrUserNotFound
	}
	u.IsDeleted = true
	u.IsOnline = false
	u.LastSeen = now()
	s.flush()
	return []Outbound{
		toUser(userID, "account_deleted", nil),
		broadcastExceptUser(userID, "user_deleted", userID),
	}, nil
}

// BlockUser sets or clears the block relation blocker -> blocked, keeping
// the blocked/blockedBy mirror consistent (spec.md §3, §8).
func (s *Store) BlockUser(blockerID, blockedID string, isBlocked bool) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Users[blockedID]; !ok {
		return nil, ErrUserNotFound
	}
	if isBlocked {
		s.doc.block(blockerID, blockedID)
	} else {
		delete(s.doc.Blocked[blockerID], blockedID)
		delete(s.doc.BlockedBy[blockedID], blockerID)
	}
	s.flush()
	events := []Outbound{
		toUser(blockerID, "user_blocked", map[string]any{"userId": blockedID, "isBlocked": isBlocked}),
	}
	if isBlocked {
		events = append(events, toUser(blockedID, "you_were_blocked", map[string]any{"userId": blockerID}))
	}
	return events, nil
}

// Bind marks userID online and promotes any of their pending sent messages
// to delivered in one batch (spec.md §4.2). Returns the events to route;
// the caller is responsible for actually registering the connection.
func (s *Store) Bind(userID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.IsOnline = true
	u.LastSeen = now()

	type promoted struct {
		MessageID string `json:"messageId"`
		ChatID    string `json:"chatId"`
	}
	var batch []promoted
	for cid, msgs := range s.doc.Messages {
		for _, m := range msgs {
			if m.ReceiverID == userID && m.Status == StatusSent {
				m.Status = StatusDelivered
				batch = append(batch, promoted{MessageID: m.ID, ChatID: cid})
			}
		}
	}
	s.flush()

	events := []Outbound{broadcastExceptUser(userID, "user_online", userID)}
	if len(batch) > 0 {
		events = append(events, broadcast("messages_batch_delivered", map[string]any{
			"userId":   userID,
			"messages": batch,
		}))
	}
	return events, nil
}

// Unbind marks userID offline. Called when the session's connection
// closes and still owns the binding (spec.md §4.2) -- the caller (the
// session layer / hub) is responsible for the "still owns the binding"
// check, since only it knows about connection identity.
func (s *Store) Unbind(userID string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.doc.Users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.IsOnline = false
	u.LastSeen = now()
	s.flush()
	return []Outbound{broadcast("user_offline", map[string]any{"userId": userID, "lastSeen": u.LastSeen})}, nil
}
